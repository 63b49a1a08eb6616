package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User 会员表
//
// 推荐关系使用 ParentID 指向推荐人主键，注册时写入，此后不可修改。
// Username 仅用于展示，UsernameKey 为小写形式，用于大小写不敏感的唯一查找。
type User struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Username          string          `gorm:"type:varchar(64);not null" json:"username"`
	UsernameKey       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	ParentID          *int64          `gorm:"index" json:"parent_id"`
	Status            string          `gorm:"type:varchar(20);not null;default:active" json:"status"`
	Points            int64           `gorm:"not null;default:0" json:"points"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	RankID            int64           `gorm:"index;not null" json:"rank_id"`
	CurrentPackageID  *int64          `json:"current_package_id"`
	PackageExpiryDate *time.Time      `gorm:"index" json:"package_expiry_date"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "mlm_user"
}

// NormalizeUsername 用户名查找键
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
