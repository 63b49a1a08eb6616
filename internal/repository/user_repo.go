package repository

import (
	"context"
	"errors"
	"time"

	"mlmsystem/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrDuplicateUsername = errors.New("用户名已存在")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	user.UsernameKey = model.NormalizeUsername(user.Username)
	result := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username_key"}},
			DoNothing: true,
		}).
		Create(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateUsername
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	var user model.User
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 加行锁读取，同一上级的并发审核在该行上串行
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername 大小写不敏感
func (r *UserRepository) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*model.User, error) {
	var user model.User
	err := r.conn(tx).WithContext(ctx).
		Where("username_key = ?", model.NormalizeUsername(username)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListChildren 查询一批用户的直属下线
func (r *UserRepository) ListChildren(ctx context.Context, tx *gorm.DB, parentIDs []int64) ([]*model.User, error) {
	var users []*model.User
	if len(parentIDs) == 0 {
		return users, nil
	}
	err := r.conn(tx).WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) AddPoints(ctx context.Context, tx *gorm.DB, id int64, points int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("points", gorm.Expr("points + ?", points))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetBalance 调用方必须已通过 GetByIDForUpdate 持有该行的行锁
func (r *UserRepository) SetBalance(ctx context.Context, tx *gorm.DB, id int64, balance decimal.Decimal) error {
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("balance", balance).Error
}

func (r *UserRepository) UpdateRank(ctx context.Context, tx *gorm.DB, id int64, rankID int64) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("rank_id", rankID).Error
}

func (r *UserRepository) AssignPackage(ctx context.Context, tx *gorm.DB, id int64, packageID int64, expiry time.Time) error {
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_package_id":  packageID,
			"package_expiry_date": expiry,
		}).Error
}

// ClearExpiredPackages 清除已过期的当前套餐，返回影响行数
func (r *UserRepository) ClearExpiredPackages(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("current_package_id IS NOT NULL AND package_expiry_date < ?", now).
		Updates(map[string]interface{}{
			"current_package_id":  nil,
			"package_expiry_date": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
