package service

import (
	"context"
	"errors"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"
	"mlmsystem/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PackageRequestService struct {
	requestRepo *repository.PackageRequestRepository
	earningRepo *repository.EarningRepository
	userRepo    *repository.UserRepository
	packageRepo *repository.PackageRepository
	ids         *idgen.Snowflake
	log         *logrus.Logger
}

func NewPackageRequestService(db *gorm.DB, ids *idgen.Snowflake, log *logrus.Logger) *PackageRequestService {
	return &PackageRequestService{
		requestRepo: repository.NewPackageRequestRepository(db),
		earningRepo: repository.NewEarningRepository(db),
		userRepo:    repository.NewUserRepository(db),
		packageRepo: repository.NewPackageRepository(db),
		ids:         ids,
		log:         log,
	}
}

type SubmitRequest struct {
	RequestNo string
	UserID    int64
	PackageID int64
}

// Submit 提交套餐购买申请，相同 RequestNo 重复提交返回已有申请
func (s *PackageRequestService) Submit(ctx context.Context, req *SubmitRequest) (*model.PackageRequest, error) {
	if req.RequestNo != "" {
		existing, err := s.requestRepo.GetByRequestNo(ctx, req.RequestNo)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	} else {
		req.RequestNo = s.ids.RequestNo()
	}

	user, err := s.userRepo.GetByID(ctx, nil, req.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != model.UserStatusActive {
		return nil, fmt.Errorf("%w: userID=%d", ErrUserInactive, user.ID)
	}

	pkg, err := s.packageRepo.GetByID(ctx, nil, req.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != model.PackageStatusActive {
		return nil, fmt.Errorf("%w: packageID=%d", ErrPackageInactive, pkg.ID)
	}

	pr := &model.PackageRequest{
		RequestNo: req.RequestNo,
		UserID:    user.ID,
		PackageID: pkg.ID,
		Status:    model.RequestStatusPending,
	}
	if err := s.requestRepo.Create(ctx, nil, pr); err != nil {
		return nil, fmt.Errorf("创建套餐申请失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": pr.ID,
		"user_id":    user.ID,
		"package_id": pkg.ID,
	}).Info("套餐申请已提交")
	return pr, nil
}

func (s *PackageRequestService) Get(ctx context.Context, id int64) (*model.PackageRequest, error) {
	return s.requestRepo.GetByID(ctx, id)
}

// Reject 驳回待审核申请，不产生任何佣金或积分
func (s *PackageRequestService) Reject(ctx context.Context, id int64, reason string) error {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != model.RequestStatusPending {
		return fmt.Errorf("%w: 当前状态 %s", ErrRequestNotPending, req.Status)
	}

	err = s.requestRepo.UpdateStatus(ctx, nil, id, model.RequestStatusPending, model.RequestStatusRejected, reason)
	if errors.Is(err, repository.ErrRequestStatusInvalid) {
		return fmt.Errorf("%w: 申请已被处理", ErrRequestNotPending)
	}
	return err
}

func (s *PackageRequestService) ListUserRequests(ctx context.Context, userID int64, page, pageSize int) ([]*model.PackageRequest, int64, error) {
	return s.requestRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ListEarnings 一次审核产生的全部流水（积分、直推、间接）
func (s *PackageRequestService) ListEarnings(ctx context.Context, requestID int64) ([]*model.Earning, error) {
	return s.earningRepo.ListByRequestID(ctx, requestID)
}

func (s *PackageRequestService) ListPackages(ctx context.Context) ([]*model.Package, error) {
	return s.packageRepo.List(ctx)
}
