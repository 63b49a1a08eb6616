package mlm

import (
	"context"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"
	"mlmsystem/pkg/idgen"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options 引擎参数，来自 business 配置
type Options struct {
	MaxChainDepth      int
	MaxDownlineDepth   int
	DownlineNodeBudget int
	IndirectFloorRank  string
	RankEventTopic     string
	IDs                *idgen.Snowflake // 收益流水号
}

// Outcome 一次审核对会员数据产生的全部影响
type Outcome struct {
	Ancestors    []*model.User
	Points       []*model.Earning
	Distribution *Distribution
	RankChanges  []*RankChangeEvent
}

// Engine 套餐审核通过后的积分、佣金、等级处理
//
// 不持有任何事务或缓存，所有步骤都在调用方传入的 tx 中执行。
type Engine struct {
	ranks      *repository.RankRepository
	walker     *ChainWalker
	points     *PointsPropagator
	commission *CommissionDistributor
	updater    *RankUpdater
	opts       Options
}

func NewEngine(db *gorm.DB, opts Options, log *logrus.Logger) *Engine {
	users := repository.NewUserRepository(db)
	earnings := repository.NewEarningRepository(db)
	qualifier := NewDownlineQualifier(users, opts.MaxDownlineDepth, opts.DownlineNodeBudget, log)

	return &Engine{
		ranks:      repository.NewRankRepository(db),
		walker:     NewChainWalker(users, log),
		points:     NewPointsPropagator(users, earnings, opts.IDs),
		commission: NewCommissionDistributor(users, earnings, qualifier, opts.IDs, opts.IndirectFloorRank, log),
		updater: NewRankUpdater(users, repository.NewRankChangeRepository(db), repository.NewOutboxRepository(db),
			qualifier, opts.RankEventTopic, log),
		opts: opts,
	}
}

func (e *Engine) LoadRankTable(ctx context.Context, tx *gorm.DB) (*RankTable, error) {
	return LoadRankTable(ctx, tx, e.ranks)
}

// Run buyer 必须已在 tx 中加行锁读取
//
// 顺序：积分 -> 直推/间接佣金 -> 由近到远重算等级。
// 等级由近到远重算，上级判断下线条件时能看到本次已晋升的下级。
func (e *Engine) Run(ctx context.Context, tx *gorm.DB, req *model.PackageRequest, pkg *model.Package, buyer *model.User) (*Outcome, error) {
	table, err := e.LoadRankTable(ctx, tx)
	if err != nil {
		return nil, err
	}

	ancestors, err := e.walker.Walk(ctx, tx, buyer, e.opts.MaxChainDepth)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Ancestors: ancestors}

	out.Points, err = e.points.Propagate(ctx, tx, req, pkg.Points, buyer, ancestors)
	if err != nil {
		return nil, err
	}

	out.Distribution, err = e.commission.Distribute(ctx, tx, table, req, pkg, buyer, ancestors)
	if err != nil {
		return nil, err
	}

	requestID := req.ID
	for _, u := range append([]*model.User{buyer}, ancestors...) {
		change, err := e.updater.Recompute(ctx, tx, table, u, &requestID)
		if err != nil {
			return nil, fmt.Errorf("重算等级失败: userID=%d: %w", u.ID, err)
		}
		if change != nil {
			out.RankChanges = append(out.RankChanges, change)
		}
	}

	return out, nil
}

// RecomputeRank 单个用户重算等级（管理操作），在 tx 中加行锁
func (e *Engine) RecomputeRank(ctx context.Context, tx *gorm.DB, user *model.User) (*RankChangeEvent, error) {
	table, err := e.LoadRankTable(ctx, tx)
	if err != nil {
		return nil, err
	}
	return e.updater.Recompute(ctx, tx, table, user, nil)
}
