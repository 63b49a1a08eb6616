package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"mlmsystem/internal/config"
	"mlmsystem/internal/infrastructure/database"
	"mlmsystem/internal/mlm"
	"mlmsystem/internal/model"
	"mlmsystem/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverSQLite},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{PackageEvents: "mlm.package_request", RankEvents: "mlm.rank"},
		},
		Business: config.BusinessConfig{
			MaxChainDepth:          20,
			MaxDownlineDepth:       15,
			DownlineNodeBudget:     50000,
			ApprovalTimeoutSeconds: 10,
			IndirectFloorRank:      "Manager",
			ConflictRetries:        3,
			MaxRetryCount:          5,
		},
		Ranks: []config.RankSeed{
			{Title: "Consultant", RequiredPoints: 0},
			{Title: "Manager", RequiredPoints: 1000},
			{Title: "Sapphire Manager", RequiredPoints: 3000},
			{Title: "Diamond", RequiredPoints: 10000},
			{Title: "Sapphire Diamond", RequiredPoints: 30000, RequiredLines: 3, LineRank: "Diamond"},
		},
		Packages: []config.PackageSeed{
			{Name: "Business", Amount: "20000", DirectCommission: "1000", IndirectCommission: "500", Points: 100, ValidityDays: 365},
		},
	}
}

type testEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	engine   *mlm.Engine
	log      *logrus.Logger
	users    *UserService
	requests *PackageRequestService
	approval *ApprovalService
	ranks    *RankService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.InitSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := testConfig()
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	if err := database.Seed(context.Background(), db, cfg.Ranks, cfg.Packages); err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	ids, err := idgen.NewSnowflake(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	engine := mlm.NewEngine(db, mlm.Options{
		MaxChainDepth:      cfg.Business.MaxChainDepth,
		MaxDownlineDepth:   cfg.Business.MaxDownlineDepth,
		DownlineNodeBudget: cfg.Business.DownlineNodeBudget,
		IndirectFloorRank:  cfg.Business.IndirectFloorRank,
		RankEventTopic:     cfg.Kafka.Topic.RankEvents,
		IDs:                ids,
	}, log)

	return &testEnv{
		db:       db,
		cfg:      cfg,
		engine:   engine,
		log:      log,
		users:    NewUserService(db, log),
		requests: NewPackageRequestService(db, ids, log),
		approval: NewApprovalService(db, nil, engine, cfg, log),
		ranks:    NewRankService(db, engine),
	}
}

func (e *testEnv) register(t *testing.T, username, referrer string) *model.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), username, referrer)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func (e *testEnv) businessPackage(t *testing.T) *model.Package {
	t.Helper()
	var pkg model.Package
	if err := e.db.Where("name = ?", "Business").First(&pkg).Error; err != nil {
		t.Fatalf("load package: %v", err)
	}
	return &pkg
}

func (e *testEnv) submit(t *testing.T, user *model.User) *model.PackageRequest {
	t.Helper()
	pr, err := e.requests.Submit(context.Background(), &SubmitRequest{
		UserID:    user.ID,
		PackageID: e.businessPackage(t).ID,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return pr
}

func (e *testEnv) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := e.users.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return u
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
