package repository

import (
	"context"
	"errors"
	"time"

	"mlmsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRequestNotFound      = errors.New("套餐申请不存在")
	ErrRequestStatusInvalid = errors.New("套餐申请状态不合法")
)

type PackageRequestRepository struct {
	db *gorm.DB
}

func NewPackageRequestRepository(db *gorm.DB) *PackageRequestRepository {
	return &PackageRequestRepository{db: db}
}

func (r *PackageRequestRepository) Create(ctx context.Context, tx *gorm.DB, req *model.PackageRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *PackageRequestRepository) GetByID(ctx context.Context, id int64) (*model.PackageRequest, error) {
	var req model.PackageRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *PackageRequestRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.PackageRequest, error) {
	var req model.PackageRequest
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *PackageRequestRepository) GetByRequestNo(ctx context.Context, requestNo string) (*model.PackageRequest, error) {
	var req model.PackageRequest
	err := r.db.WithContext(ctx).Where("request_no = ?", requestNo).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *PackageRequestRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus, reason string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrRequestStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if reason != "" {
		updates["reason"] = reason
	}
	if toStatus == model.RequestStatusApproved {
		now := time.Now()
		updates["approved_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.PackageRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrRequestStatusInvalid
	}

	return nil
}

func (r *PackageRequestRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PackageRequest, int64, error) {
	var reqs []*model.PackageRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PackageRequest{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reqs).Error

	return reqs, total, err
}
