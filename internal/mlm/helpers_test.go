package mlm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"mlmsystem/internal/config"
	"mlmsystem/internal/infrastructure/database"
	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"
	"mlmsystem/pkg/idgen"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var testRanks = []config.RankSeed{
	{Title: "Consultant", RequiredPoints: 0},
	{Title: "Manager", RequiredPoints: 1000},
	{Title: "Sapphire Manager", RequiredPoints: 3000},
	{Title: "Diamond", RequiredPoints: 10000},
	{Title: "Sapphire Diamond", RequiredPoints: 30000, RequiredLines: 3, LineRank: "Diamond"},
	{Title: "Ambassador", RequiredPoints: 100000, RequiredLines: 3, LineRank: "Sapphire Diamond"},
	{Title: "Sapphire Ambassador", RequiredPoints: 300000, RequiredLines: 4, LineRank: "Sapphire Diamond"},
}

var testPackages = []config.PackageSeed{
	{Name: "Starter", Amount: "5000", DirectCommission: "500", IndirectCommission: "200", Points: 50, ValidityDays: 365},
	{Name: "Business", Amount: "20000", DirectCommission: "1000", IndirectCommission: "500", Points: 100, ValidityDays: 365},
}

var testIDs, _ = idgen.NewSnowflake(1)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.InitSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	if err := database.Seed(context.Background(), db, testRanks, testPackages); err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestEngine(db *gorm.DB) *Engine {
	return NewEngine(db, Options{
		MaxChainDepth:      20,
		MaxDownlineDepth:   15,
		DownlineNodeBudget: 50000,
		IndirectFloorRank:  "Manager",
		RankEventTopic:     "mlm.rank",
		IDs:                testIDs,
	}, testLogger())
}

func rankID(t *testing.T, db *gorm.DB, title string) int64 {
	t.Helper()
	r, err := repository.NewRankRepository(db).GetByTitle(context.Background(), title)
	if err != nil {
		t.Fatalf("rank %s: %v", title, err)
	}
	return r.ID
}

func mustPackage(t *testing.T, db *gorm.DB, name string) *model.Package {
	t.Helper()
	var pkg model.Package
	if err := db.Where("name = ?", name).First(&pkg).Error; err != nil {
		t.Fatalf("package %s: %v", name, err)
	}
	return &pkg
}

// newUser 直接写库，绕过注册流程以便设置任意等级和积分
func newUser(t *testing.T, db *gorm.DB, name string, parent *model.User, rank string, points int64) *model.User {
	t.Helper()
	u := &model.User{
		Username: name,
		Status:   model.UserStatusActive,
		Points:   points,
		Balance:  decimal.Zero,
		RankID:   rankID(t, db, rank),
	}
	if parent != nil {
		u.ParentID = &parent.ID
	}
	if err := repository.NewUserRepository(db).Create(context.Background(), nil, u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func newRequest(t *testing.T, db *gorm.DB, buyer *model.User, pkg *model.Package) *model.PackageRequest {
	t.Helper()
	req := &model.PackageRequest{
		RequestNo: fmt.Sprintf("REQ-%d-%d", buyer.ID, pkg.ID),
		UserID:    buyer.ID,
		PackageID: pkg.ID,
		Status:    model.RequestStatusPending,
	}
	if err := repository.NewPackageRequestRepository(db).Create(context.Background(), nil, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func reload(t *testing.T, db *gorm.DB, u *model.User) *model.User {
	t.Helper()
	fresh, err := repository.NewUserRepository(db).GetByID(context.Background(), nil, u.ID)
	if err != nil {
		t.Fatalf("reload user %d: %v", u.ID, err)
	}
	return fresh
}

// runEngine 在事务内执行一次完整的审核处理
func runEngine(t *testing.T, db *gorm.DB, e *Engine, buyer *model.User, pkg *model.Package) *Outcome {
	t.Helper()
	req := newRequest(t, db, buyer, pkg)

	var out *Outcome
	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := repository.NewUserRepository(db).GetByIDForUpdate(context.Background(), tx, buyer.ID)
		if err != nil {
			return err
		}
		out, err = e.Run(context.Background(), tx, req, pkg, locked)
		return err
	})
	if err != nil {
		t.Fatalf("engine run failed: %v", err)
	}
	return out
}

func countEarnings(t *testing.T, db *gorm.DB, userID int64, earningType string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.Earning{}).Where("user_id = ? AND type = ?", userID, earningType).Count(&n).Error; err != nil {
		t.Fatalf("count earnings: %v", err)
	}
	return n
}
