package database

import (
	"context"
	"fmt"

	"mlmsystem/internal/config"
	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Open 按配置选择驱动
func Open(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return InitSQLite(cfg.SQLite.DSN)
	default:
		return InitMySQL(&cfg.MySQL)
	}
}

// Migrate 自动迁移表结构
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Rank{},
		&model.Package{},
		&model.User{},
		&model.PackageRequest{},
		&model.Earning{},
		&model.RankChange{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("自动迁移表结构失败: %w", err)
	}
	return nil
}

// Seed 写入等级表与套餐，整体在一个事务内完成
//
// 等级按配置顺序写入；下线等级已写入时直接带上下线条件，
// 引用靠后等级的在第二轮补齐。
func Seed(ctx context.Context, db *gorm.DB, ranks []config.RankSeed, packages []config.PackageSeed) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := seedRanks(ctx, tx, ranks); err != nil {
			return err
		}
		return seedPackages(ctx, tx, packages)
	})
}

func seedRanks(ctx context.Context, tx *gorm.DB, ranks []config.RankSeed) error {
	rankRepo := repository.NewRankRepository(tx)

	ids := make(map[string]int64, len(ranks))
	var pending []config.RankSeed
	for _, seed := range ranks {
		r := &model.Rank{
			Title:           seed.Title,
			RequiredPoints:  seed.RequiredPoints,
			RequirementKind: model.RequirementPoints,
		}
		if seed.RequiredLines > 0 {
			lineRankID, ok := ids[seed.LineRank]
			if !ok {
				pending = append(pending, seed)
				continue
			}
			r.RequirementKind = model.RequirementDownline
			r.RequiredLines = seed.RequiredLines
			r.LineRankID = &lineRankID
		}
		if err := rankRepo.Upsert(ctx, r); err != nil {
			return fmt.Errorf("写入等级 %s 失败: %w", seed.Title, err)
		}
		ids[seed.Title] = r.ID
	}

	// 引用靠后等级：先占位写入拿到 ID，再补下线条件
	for _, seed := range pending {
		r := &model.Rank{Title: seed.Title, RequiredPoints: seed.RequiredPoints, RequirementKind: model.RequirementPoints}
		if err := rankRepo.Upsert(ctx, r); err != nil {
			return fmt.Errorf("写入等级 %s 失败: %w", seed.Title, err)
		}
		ids[seed.Title] = r.ID
	}
	for _, seed := range pending {
		lineRankID, ok := ids[seed.LineRank]
		if !ok {
			return fmt.Errorf("等级 %s 的下线等级 %s 不存在", seed.Title, seed.LineRank)
		}
		r := &model.Rank{
			Title:           seed.Title,
			RequiredPoints:  seed.RequiredPoints,
			RequirementKind: model.RequirementDownline,
			RequiredLines:   seed.RequiredLines,
			LineRankID:      &lineRankID,
		}
		if err := rankRepo.Upsert(ctx, r); err != nil {
			return fmt.Errorf("写入等级 %s 失败: %w", seed.Title, err)
		}
	}
	return nil
}

func seedPackages(ctx context.Context, tx *gorm.DB, packages []config.PackageSeed) error {
	pkgRepo := repository.NewPackageRepository(tx)
	for _, seed := range packages {
		pkg := &model.Package{
			Name:         seed.Name,
			Points:       seed.Points,
			ValidityDays: seed.ValidityDays,
			Status:       model.PackageStatusActive,
		}
		var err error
		if pkg.Amount, err = decimal.NewFromString(seed.Amount); err != nil {
			return fmt.Errorf("套餐 %s 金额格式错误: %w", seed.Name, err)
		}
		if pkg.DirectCommission, err = decimal.NewFromString(seed.DirectCommission); err != nil {
			return fmt.Errorf("套餐 %s 直推佣金格式错误: %w", seed.Name, err)
		}
		if pkg.IndirectCommission, err = decimal.NewFromString(seed.IndirectCommission); err != nil {
			return fmt.Errorf("套餐 %s 间接佣金格式错误: %w", seed.Name, err)
		}
		if err := pkgRepo.UpsertByName(ctx, pkg); err != nil {
			return fmt.Errorf("写入套餐 %s 失败: %w", seed.Name, err)
		}
	}
	return nil
}
