package repository

import (
	"context"
	"errors"

	"mlmsystem/internal/model"

	"gorm.io/gorm"
)

var ErrRankNotFound = errors.New("等级不存在")

type RankRepository struct {
	db *gorm.DB
}

func NewRankRepository(db *gorm.DB) *RankRepository {
	return &RankRepository{db: db}
}

// ListAll 按积分门槛升序返回全部等级
func (r *RankRepository) ListAll(ctx context.Context, tx *gorm.DB) ([]*model.Rank, error) {
	if tx == nil {
		tx = r.db
	}
	var ranks []*model.Rank
	err := tx.WithContext(ctx).Order("required_points ASC, id ASC").Find(&ranks).Error
	return ranks, err
}

func (r *RankRepository) GetByTitle(ctx context.Context, title string) (*model.Rank, error) {
	var rank model.Rank
	err := r.db.WithContext(ctx).Where("title = ?", title).First(&rank).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRankNotFound
		}
		return nil, err
	}
	return &rank, nil
}

// Upsert 按 title 写入或更新等级定义
func (r *RankRepository) Upsert(ctx context.Context, rank *model.Rank) error {
	existing, err := r.GetByTitle(ctx, rank.Title)
	if err != nil && !errors.Is(err, ErrRankNotFound) {
		return err
	}
	if existing == nil {
		return r.db.WithContext(ctx).Create(rank).Error
	}

	rank.ID = existing.ID
	return r.db.WithContext(ctx).
		Model(&model.Rank{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"required_points":  rank.RequiredPoints,
			"requirement_kind": rank.RequirementKind,
			"required_lines":   rank.RequiredLines,
			"line_rank_id":     rank.LineRankID,
		}).Error
}
