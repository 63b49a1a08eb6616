package model

import (
	"time"
)

const (
	RequirementPoints   = "points"
	RequirementDownline = "downline"
)

// Rank 等级表（只读参考数据，启动时由配置写入）
//
// RequirementKind 为 downline 时，除积分外还要求至少 RequiredLines 条直属线路
// 中存在等级不低于 LineRankID 的成员。
type Rank struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"title"`
	RequiredPoints  int64     `gorm:"not null;index" json:"required_points"`
	RequirementKind string    `gorm:"type:varchar(20);not null;default:points" json:"requirement_kind"`
	RequiredLines   int       `gorm:"not null;default:0" json:"required_lines"`
	LineRankID      *int64    `json:"line_rank_id,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Rank) TableName() string {
	return "rank_tier"
}

// RankChange 等级变更审计记录，只追加
type RankChange struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"index;not null" json:"user_id"`
	FromRankID       int64     `gorm:"not null" json:"from_rank_id"`
	ToRankID         int64     `gorm:"not null" json:"to_rank_id"`
	PackageRequestID *int64    `gorm:"index" json:"package_request_id,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (RankChange) TableName() string {
	return "rank_change"
}
