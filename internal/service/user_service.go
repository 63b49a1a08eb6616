package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxUsernameLength = 64

type UserService struct {
	userRepo    *repository.UserRepository
	rankRepo    *repository.RankRepository
	earningRepo *repository.EarningRepository
	changeRepo  *repository.RankChangeRepository
	log         *logrus.Logger
}

func NewUserService(db *gorm.DB, log *logrus.Logger) *UserService {
	return &UserService{
		userRepo:    repository.NewUserRepository(db),
		rankRepo:    repository.NewRankRepository(db),
		earningRepo: repository.NewEarningRepository(db),
		changeRepo:  repository.NewRankChangeRepository(db),
		log:         log,
	}
}

// Register 注册会员，推荐人按用户名（大小写不敏感）解析为主键后写入，此后不可修改
func (s *UserService) Register(ctx context.Context, username, referrer string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, ErrInvalidUsername
	}

	ranks, err := s.rankRepo.ListAll(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("加载等级表失败: %w", err)
	}
	if len(ranks) == 0 {
		return nil, errors.New("等级表为空")
	}

	user := &model.User{
		Username: username,
		Status:   model.UserStatusActive,
		RankID:   ranks[0].ID,
	}

	if strings.TrimSpace(referrer) != "" {
		parent, err := s.userRepo.GetByUsername(ctx, nil, referrer)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrReferrerNotFound, referrer)
			}
			return nil, err
		}
		user.ParentID = &parent.ID
	}

	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"parent_id": user.ParentID,
	}).Info("会员注册成功")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, nil, id)
}

// ListDownline 直属下线
func (s *UserService) ListDownline(ctx context.Context, id int64) ([]*model.User, error) {
	if _, err := s.userRepo.GetByID(ctx, nil, id); err != nil {
		return nil, err
	}
	return s.userRepo.ListChildren(ctx, nil, []int64{id})
}

func (s *UserService) ListEarnings(ctx context.Context, userID int64, page, pageSize int) ([]*model.Earning, int64, error) {
	return s.earningRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ListRankChanges 等级变更历史，按时间升序
func (s *UserService) ListRankChanges(ctx context.Context, userID int64) ([]*model.RankChange, error) {
	return s.changeRepo.ListByUserID(ctx, userID)
}

func (s *UserService) SetStatus(ctx context.Context, id int64, status string) error {
	if status != model.UserStatusActive && status != model.UserStatusInactive {
		return ErrInvalidUserStatus
	}
	return s.userRepo.UpdateStatus(ctx, id, status)
}
