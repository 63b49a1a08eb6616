package repository

import (
	"context"

	"mlmsystem/internal/model"

	"gorm.io/gorm"
)

type RankChangeRepository struct {
	db *gorm.DB
}

func NewRankChangeRepository(db *gorm.DB) *RankChangeRepository {
	return &RankChangeRepository{db: db}
}

func (r *RankChangeRepository) Create(ctx context.Context, tx *gorm.DB, change *model.RankChange) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(change).Error
}

func (r *RankChangeRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.RankChange, error) {
	var changes []*model.RankChange
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&changes).Error
	return changes, err
}
