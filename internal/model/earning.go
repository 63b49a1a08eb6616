package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EarningTypeDirect   = "direct_commission"
	EarningTypeIndirect = "indirect_commission"
	EarningTypePoints   = "points"
)

// Earning 收益流水表
//
// 流水只追加，不修改，不删除。积分类流水的 Amount 为积分数，
// BalanceBefore/BalanceAfter 记录对应字段（余额或积分）变动前后的值。
type Earning struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EarningNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"earning_no"`
	UserID           int64           `gorm:"index;not null" json:"user_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Type             string          `gorm:"type:varchar(32);index;not null" json:"type"`
	PackageRequestID int64           `gorm:"index;not null" json:"package_request_id"`
	SourceUserID     int64           `gorm:"not null" json:"source_user_id"`
	RankID           *int64          `json:"rank_id,omitempty"`
	BalanceBefore    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	Remark           string          `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt        time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Earning) TableName() string {
	return "earning"
}
