package repository

import (
	"context"
	"errors"

	"mlmsystem/internal/model"

	"gorm.io/gorm"
)

var ErrPackageNotFound = errors.New("套餐不存在")

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

func (r *PackageRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Package, error) {
	if tx == nil {
		tx = r.db
	}
	var pkg model.Package
	err := tx.WithContext(ctx).Where("id = ?", id).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) List(ctx context.Context) ([]*model.Package, error) {
	var pkgs []*model.Package
	err := r.db.WithContext(ctx).Order("amount ASC").Find(&pkgs).Error
	return pkgs, err
}

// UpsertByName 按 name 写入或更新套餐定义，不修改已有套餐的状态
func (r *PackageRepository) UpsertByName(ctx context.Context, pkg *model.Package) error {
	var existing model.Package
	err := r.db.WithContext(ctx).Where("name = ?", pkg.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(pkg).Error
	}
	if err != nil {
		return err
	}

	pkg.ID = existing.ID
	return r.db.WithContext(ctx).
		Model(&model.Package{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"amount":              pkg.Amount,
			"direct_commission":   pkg.DirectCommission,
			"indirect_commission": pkg.IndirectCommission,
			"points":              pkg.Points,
			"validity_days":       pkg.ValidityDays,
		}).Error
}
