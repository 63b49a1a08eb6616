package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PackageStatusActive   = "active"
	PackageStatusInactive = "inactive"
)

// Package 可购买的套餐
type Package struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Amount             decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	DirectCommission   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"direct_commission"`
	IndirectCommission decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"indirect_commission"`
	Points             int64           `gorm:"not null;default:0" json:"points"`
	ValidityDays       int             `gorm:"not null;default:365" json:"validity_days"`
	Status             string          `gorm:"type:varchar(20);not null;default:active" json:"status"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Package) TableName() string {
	return "package"
}
