package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mlmsystem/internal/config"
	"mlmsystem/internal/infrastructure/lock"
	"mlmsystem/internal/mlm"
	"mlmsystem/internal/model"
	"mlmsystem/internal/monitoring"
	"mlmsystem/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

type ApprovalService struct {
	db          *gorm.DB
	cfg         *config.Config
	log         *logrus.Logger
	engine      *mlm.Engine
	requestRepo *repository.PackageRequestRepository
	userRepo    *repository.UserRepository
	packageRepo *repository.PackageRepository
	outboxRepo  *repository.OutboxRepository
	newLock     func(requestID int64) lock.Locker
}

// NewApprovalService rdb 为 nil 时不使用分布式锁
func NewApprovalService(db *gorm.DB, rdb *redis.Client, engine *mlm.Engine, cfg *config.Config, log *logrus.Logger) *ApprovalService {
	s := &ApprovalService{
		db:          db,
		cfg:         cfg,
		log:         log,
		engine:      engine,
		requestRepo: repository.NewPackageRequestRepository(db),
		userRepo:    repository.NewUserRepository(db),
		packageRepo: repository.NewPackageRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		newLock: func(int64) lock.Locker {
			return lock.NopLock{}
		},
	}

	if rdb != nil {
		expiration := s.timeout() + 30*time.Second
		s.newLock = func(requestID int64) lock.Locker {
			return lock.NewApprovalLock(rdb, requestID, uuid.NewString(), expiration)
		}
	}
	return s
}

// ApprovalResult 审核结果
type ApprovalResult struct {
	Success             bool                   `json:"success"`
	Message             string                 `json:"message"`
	RequestID           int64                  `json:"request_id"`
	User                *model.User            `json:"user"`
	Package             *model.Package         `json:"package"`
	PackageAmount       decimal.Decimal        `json:"package_amount"`
	DirectCommission    *model.Earning         `json:"direct_commission,omitempty"`
	IndirectCommissions []*model.Earning       `json:"indirect_commissions"`
	ForfeitedIndirect   decimal.Decimal        `json:"forfeited_indirect"`
	PointsRecipients    int                    `json:"points_recipients"`
	RankChanges         []*mlm.RankChangeEvent `json:"rank_changes"`
}

// ApprovePackageRequest 审核通过套餐申请
//
// 分配套餐、积分、佣金、等级重算、申请状态变更在同一个事务内完成；
// 任一步骤失败则全部回滚，申请保持 pending 以便重试。
// 遇到死锁/锁等待超时时整个事务重试。
func (s *ApprovalService) ApprovePackageRequest(ctx context.Context, requestID int64) (*ApprovalResult, error) {
	start := time.Now()

	approvalLock := s.newLock(requestID)
	if err := approvalLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer approvalLock.Unlock(context.Background())

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var (
		result *ApprovalResult
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, err = s.approveOnce(ctx, requestID)
		if err == nil || !isLockConflict(err) || attempt >= s.cfg.Business.ConflictRetries {
			break
		}
		monitoring.ApprovalRetries.Inc()
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"attempt":    attempt + 1,
		}).WithError(err).Warn("审核事务锁冲突，重试")
	}

	monitoring.ApprovalDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		fields := logrus.Fields{"request_id": requestID}
		if IsPrecondition(err) {
			monitoring.ApprovalsTotal.WithLabelValues("precondition_failed").Inc()
			s.log.WithFields(fields).WithError(err).Info("套餐申请不满足审核条件")
		} else {
			monitoring.ApprovalsTotal.WithLabelValues("error").Inc()
			s.log.WithFields(fields).WithError(err).Error("套餐申请审核失败，事务已回滚")
		}
		return nil, err
	}

	s.recordMetrics(result)
	s.log.WithFields(logrus.Fields{
		"request_id":   requestID,
		"user_id":      result.User.ID,
		"package_id":   result.Package.ID,
		"rank_changes": len(result.RankChanges),
	}).Info("套餐申请审核通过")

	return result, nil
}

func (s *ApprovalService) approveOnce(ctx context.Context, requestID int64) (*ApprovalResult, error) {
	var result *ApprovalResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, err := s.requestRepo.GetByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.RequestStatusPending {
			return fmt.Errorf("%w: 当前状态 %s", ErrRequestNotPending, req.Status)
		}

		buyer, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return fmt.Errorf("查询申请用户失败: %w", err)
		}
		if buyer.Status != model.UserStatusActive {
			return fmt.Errorf("%w: userID=%d", ErrUserInactive, buyer.ID)
		}

		pkg, err := s.packageRepo.GetByID(ctx, tx, req.PackageID)
		if err != nil {
			return fmt.Errorf("查询套餐失败: %w", err)
		}
		if pkg.Status != model.PackageStatusActive {
			return fmt.Errorf("%w: packageID=%d", ErrPackageInactive, pkg.ID)
		}

		expiry := time.Now().AddDate(0, 0, pkg.ValidityDays)
		if err := s.userRepo.AssignPackage(ctx, tx, buyer.ID, pkg.ID, expiry); err != nil {
			return fmt.Errorf("分配套餐失败: %w", err)
		}
		buyer.CurrentPackageID = &pkg.ID
		buyer.PackageExpiryDate = &expiry

		outcome, err := s.engine.Run(ctx, tx, req, pkg, buyer)
		if err != nil {
			return err
		}

		if err := s.requestRepo.UpdateStatus(ctx, tx, req.ID, model.RequestStatusPending, model.RequestStatusApproved, ""); err != nil {
			return fmt.Errorf("更新申请状态失败: %w", err)
		}

		result = &ApprovalResult{
			Success:             true,
			Message:             "审核通过",
			RequestID:           req.ID,
			User:                buyer,
			Package:             pkg,
			PackageAmount:       pkg.Amount,
			IndirectCommissions: outcome.Distribution.Indirect,
			DirectCommission:    outcome.Distribution.Direct,
			ForfeitedIndirect:   outcome.Distribution.Forfeited,
			PointsRecipients:    len(outcome.Points),
			RankChanges:         outcome.RankChanges,
		}

		payload := map[string]interface{}{
			"request_id":         req.ID,
			"request_no":         req.RequestNo,
			"user_id":            buyer.ID,
			"package_id":         pkg.ID,
			"package_amount":     pkg.Amount,
			"points":             pkg.Points,
			"points_recipients":  len(outcome.Points),
			"forfeited_indirect": outcome.Distribution.Forfeited,
			"approved_at":        time.Now().Format(time.RFC3339),
		}
		if err := s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.PackageEvents, model.EventPackageRequestApproved,
			strconv.FormatInt(req.ID, 10), payload); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ApprovalService) recordMetrics(result *ApprovalResult) {
	monitoring.ApprovalsTotal.WithLabelValues("approved").Inc()
	if result.DirectCommission != nil {
		v, _ := result.DirectCommission.Amount.Float64()
		monitoring.CommissionPaid.WithLabelValues(model.EarningTypeDirect).Add(v)
	}
	for _, e := range result.IndirectCommissions {
		v, _ := e.Amount.Float64()
		monitoring.CommissionPaid.WithLabelValues(model.EarningTypeIndirect).Add(v)
	}
	if result.ForfeitedIndirect.IsPositive() {
		v, _ := result.ForfeitedIndirect.Float64()
		monitoring.CommissionForfeited.Add(v)
	}
	for _, c := range result.RankChanges {
		monitoring.RankChanges.WithLabelValues(c.ToRank).Inc()
	}
}

func (s *ApprovalService) timeout() time.Duration {
	if s.cfg.Business.ApprovalTimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(s.cfg.Business.ApprovalTimeoutSeconds) * time.Second
}

func isLockConflict(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}
