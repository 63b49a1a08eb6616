package model

import (
	"time"
)

const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
	RequestStatusFailed   = "failed"
)

// 审核通过、驳回、失败均为终态
var ValidStatusTransitions = map[string][]string{
	RequestStatusPending: {RequestStatusApproved, RequestStatusRejected, RequestStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

type PackageRequest struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNo  string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`
	UserID     int64      `gorm:"index;not null" json:"user_id"`
	PackageID  int64      `gorm:"index;not null" json:"package_id"`
	Status     string     `gorm:"type:varchar(20);index;not null" json:"status"`
	Reason     string     `gorm:"type:varchar(256)" json:"reason"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PackageRequest) TableName() string {
	return "package_request"
}
