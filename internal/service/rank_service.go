package service

import (
	"context"

	"mlmsystem/internal/mlm"
	"mlmsystem/internal/model"
	"mlmsystem/internal/monitoring"
	"mlmsystem/internal/repository"

	"gorm.io/gorm"
)

type RankService struct {
	db       *gorm.DB
	engine   *mlm.Engine
	rankRepo *repository.RankRepository
	userRepo *repository.UserRepository
}

func NewRankService(db *gorm.DB, engine *mlm.Engine) *RankService {
	return &RankService{
		db:       db,
		engine:   engine,
		rankRepo: repository.NewRankRepository(db),
		userRepo: repository.NewUserRepository(db),
	}
}

func (s *RankService) ListRanks(ctx context.Context) ([]*model.Rank, error) {
	return s.rankRepo.ListAll(ctx, nil)
}

// Recompute 管理员手动重算单个用户等级，等级未变化时返回 nil
func (s *RankService) Recompute(ctx context.Context, userID int64) (*mlm.RankChangeEvent, error) {
	var change *mlm.RankChangeEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		change, err = s.engine.RecomputeRank(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		monitoring.RankChanges.WithLabelValues(change.ToRank).Inc()
	}
	return change, nil
}
