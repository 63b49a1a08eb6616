package repository

import (
	"context"

	"mlmsystem/internal/model"

	"gorm.io/gorm"
)

type EarningRepository struct {
	db *gorm.DB
}

func NewEarningRepository(db *gorm.DB) *EarningRepository {
	return &EarningRepository{db: db}
}

func (r *EarningRepository) Create(ctx context.Context, tx *gorm.DB, earning *model.Earning) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(earning).Error
}

func (r *EarningRepository) ListByRequestID(ctx context.Context, requestID int64) ([]*model.Earning, error) {
	var earnings []*model.Earning
	err := r.db.WithContext(ctx).
		Where("package_request_id = ?", requestID).
		Order("id ASC").
		Find(&earnings).Error
	return earnings, err
}

func (r *EarningRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Earning, int64, error) {
	var earnings []*model.Earning
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Earning{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&earnings).Error

	return earnings, total, err
}
