package mlm

import (
	"context"
	"errors"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"gorm.io/gorm"
)

var ErrEmptyRankTable = errors.New("等级表为空")

// Requirement 等级在积分门槛之外的附加条件
type Requirement interface {
	Check(ctx context.Context, tx *gorm.DB, user *model.User, q *DownlineQualifier) (bool, error)
	String() string
}

// PointsOnly 仅要求积分
type PointsOnly struct{}

func (PointsOnly) Check(context.Context, *gorm.DB, *model.User, *DownlineQualifier) (bool, error) {
	return true, nil
}

func (PointsOnly) String() string { return "points" }

// DownlineLines 要求至少 Lines 条直属线路中存在等级不低于 MinLevel 的成员
type DownlineLines struct {
	Lines    int
	MinLevel int
	MinTitle string

	table *RankTable
}

func (d DownlineLines) Check(ctx context.Context, tx *gorm.DB, user *model.User, q *DownlineQualifier) (bool, error) {
	atLeast := func(u *model.User) bool {
		return d.table.Level(u.RankID) >= d.MinLevel
	}
	lines, err := q.CountQualifyingLines(ctx, tx, user.ID, atLeast, q.MaxDepth())
	if err != nil {
		return false, err
	}
	return lines >= d.Lines, nil
}

func (d DownlineLines) String() string {
	return fmt.Sprintf("%d lines with %s", d.Lines, d.MinTitle)
}

// Tier 等级表中的一档
type Tier struct {
	Rank        *model.Rank
	Level       int
	Requirement Requirement
}

// Promotable 积分达到门槛且满足附加条件
func (t *Tier) Promotable(ctx context.Context, tx *gorm.DB, user *model.User, q *DownlineQualifier) (bool, error) {
	if user.Points < t.Rank.RequiredPoints {
		return false, nil
	}
	return t.Requirement.Check(ctx, tx, user, q)
}

// Holds 用户当前持有该等级，且仍满足附加条件（仅持有头衔不够）
func (t *Tier) Holds(ctx context.Context, tx *gorm.DB, user *model.User, q *DownlineQualifier) (bool, error) {
	if user.RankID != t.Rank.ID {
		return false, nil
	}
	return t.Requirement.Check(ctx, tx, user, q)
}

// RankTable 按积分门槛升序排列的等级表，每次审核时重新加载
type RankTable struct {
	tiers []*Tier
	level map[int64]int
}

// NewRankTable ranks 需已按 required_points 升序排列
func NewRankTable(ranks []*model.Rank) (*RankTable, error) {
	if len(ranks) == 0 {
		return nil, ErrEmptyRankTable
	}

	t := &RankTable{
		tiers: make([]*Tier, 0, len(ranks)),
		level: make(map[int64]int, len(ranks)),
	}
	for i, r := range ranks {
		t.level[r.ID] = i
	}

	for i, r := range ranks {
		tier := &Tier{Rank: r, Level: i, Requirement: PointsOnly{}}
		if r.RequirementKind == model.RequirementDownline && r.RequiredLines > 0 {
			if r.LineRankID == nil {
				return nil, fmt.Errorf("等级 %s 缺少下线等级配置", r.Title)
			}
			minLevel, ok := t.level[*r.LineRankID]
			if !ok {
				return nil, fmt.Errorf("等级 %s 的下线等级 %d 不存在", r.Title, *r.LineRankID)
			}
			tier.Requirement = DownlineLines{
				Lines:    r.RequiredLines,
				MinLevel: minLevel,
				MinTitle: ranks[minLevel].Title,
				table:    t,
			}
		}
		t.tiers = append(t.tiers, tier)
	}
	return t, nil
}

// LoadRankTable 从存储读取等级表
func LoadRankTable(ctx context.Context, tx *gorm.DB, repo *repository.RankRepository) (*RankTable, error) {
	ranks, err := repo.ListAll(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("加载等级表失败: %w", err)
	}
	return NewRankTable(ranks)
}

// Level 未知等级返回 -1
func (t *RankTable) Level(rankID int64) int {
	lvl, ok := t.level[rankID]
	if !ok {
		return -1
	}
	return lvl
}

func (t *RankTable) Lowest() *Tier {
	return t.tiers[0]
}

func (t *RankTable) Tier(rankID int64) *Tier {
	lvl, ok := t.level[rankID]
	if !ok {
		return nil
	}
	return t.tiers[lvl]
}

func (t *RankTable) ByTitle(title string) *Tier {
	for _, tier := range t.tiers {
		if tier.Rank.Title == title {
			return tier
		}
	}
	return nil
}

func (t *RankTable) Descending() []*Tier {
	out := make([]*Tier, 0, len(t.tiers))
	for i := len(t.tiers) - 1; i >= 0; i-- {
		out = append(out, t.tiers[i])
	}
	return out
}

// IndirectLadder 间接佣金的等级阶梯：从起始等级开始升序，最低等级永远不参与
func (t *RankTable) IndirectLadder(floorTitle string) ([]*Tier, error) {
	floor := t.ByTitle(floorTitle)
	if floor == nil {
		return nil, fmt.Errorf("间接佣金起始等级 %s 不存在", floorTitle)
	}

	ladder := make([]*Tier, 0, len(t.tiers))
	for _, tier := range t.tiers {
		if tier.Level == 0 || tier.Level < floor.Level {
			continue
		}
		ladder = append(ladder, tier)
	}
	return ladder, nil
}
