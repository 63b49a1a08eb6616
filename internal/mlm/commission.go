package mlm

import (
	"context"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"
	"mlmsystem/pkg/idgen"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Distribution 一次审核产生的佣金结果
type Distribution struct {
	Direct    *model.Earning
	Indirect  []*model.Earning
	Forfeited decimal.Decimal
}

// CommissionDistributor 发放直推佣金与间接佣金
type CommissionDistributor struct {
	users      *repository.UserRepository
	earnings   *repository.EarningRepository
	qualifier  *DownlineQualifier
	ids        *idgen.Snowflake
	floorTitle string
	log        *logrus.Logger
}

func NewCommissionDistributor(users *repository.UserRepository, earnings *repository.EarningRepository,
	qualifier *DownlineQualifier, ids *idgen.Snowflake, floorTitle string, log *logrus.Logger) *CommissionDistributor {
	return &CommissionDistributor{
		users:      users,
		earnings:   earnings,
		qualifier:  qualifier,
		ids:        ids,
		floorTitle: floorTitle,
		log:        log,
	}
}

// Distribute ancestors 为购买人的完整上级链（由近到远），ancestors[0] 即直推人
//
// 间接佣金从起始等级开始逐档升序：
//   - 该档有合格上级：向链上最近的一位支付 本档金额+累计金额，累计清零
//   - 该档无合格上级：本档金额计入累计，继续下一档
//
// 直推人不参与间接佣金；最高档之后仍未发出的累计金额在本次审核中作废。
func (d *CommissionDistributor) Distribute(ctx context.Context, tx *gorm.DB, table *RankTable,
	req *model.PackageRequest, pkg *model.Package, buyer *model.User, ancestors []*model.User) (*Distribution, error) {

	dist := &Distribution{Forfeited: decimal.Zero}
	if len(ancestors) == 0 {
		return dist, nil
	}

	direct := ancestors[0]
	if pkg.DirectCommission.IsPositive() {
		earning, err := d.credit(ctx, tx, direct, pkg.DirectCommission, model.EarningTypeDirect, req, buyer, nil)
		if err != nil {
			return nil, err
		}
		dist.Direct = earning
	}

	if !pkg.IndirectCommission.IsPositive() {
		return dist, nil
	}

	ladder, err := table.IndirectLadder(d.floorTitle)
	if err != nil {
		return nil, err
	}

	upline := ancestors[1:]
	carried := decimal.Zero
	for _, tier := range ladder {
		recipient, err := d.firstHolder(ctx, tx, tier, upline)
		if err != nil {
			return nil, err
		}

		if recipient == nil {
			carried = carried.Add(pkg.IndirectCommission)
			continue
		}

		amount := pkg.IndirectCommission.Add(carried)
		rankID := tier.Rank.ID
		earning, err := d.credit(ctx, tx, recipient, amount, model.EarningTypeIndirect, req, buyer, &rankID)
		if err != nil {
			return nil, err
		}
		dist.Indirect = append(dist.Indirect, earning)
		carried = decimal.Zero
	}

	if carried.IsPositive() {
		dist.Forfeited = carried
		d.log.WithFields(logrus.Fields{
			"request_id": req.ID,
			"buyer_id":   buyer.ID,
			"amount":     carried.String(),
		}).Info("间接佣金累计金额无合格上级，本次作废")
	}

	return dist, nil
}

// firstHolder 链上最近的一位持有该等级且满足该等级附加条件的上级
func (d *CommissionDistributor) firstHolder(ctx context.Context, tx *gorm.DB, tier *Tier, upline []*model.User) (*model.User, error) {
	for _, u := range upline {
		ok, err := tier.Holds(ctx, tx, u, d.qualifier)
		if err != nil {
			return nil, fmt.Errorf("校验上级等级条件失败: userID=%d: %w", u.ID, err)
		}
		if ok {
			return u, nil
		}
		if u.RankID == tier.Rank.ID {
			d.log.WithFields(logrus.Fields{
				"user_id": u.ID,
				"rank":    tier.Rank.Title,
			}).Info("上级持有等级但不再满足下线条件，跳过")
		}
	}
	return nil, nil
}

func (d *CommissionDistributor) credit(ctx context.Context, tx *gorm.DB, u *model.User, amount decimal.Decimal,
	earningType string, req *model.PackageRequest, buyer *model.User, rankID *int64) (*model.Earning, error) {

	before := u.Balance
	after := before.Add(amount)
	if err := d.users.SetBalance(ctx, tx, u.ID, after); err != nil {
		return nil, fmt.Errorf("佣金入账失败: userID=%d: %w", u.ID, err)
	}
	u.Balance = after

	earning := &model.Earning{
		EarningNo:        d.ids.EarningNo(),
		UserID:           u.ID,
		Amount:           amount,
		Type:             earningType,
		PackageRequestID: req.ID,
		SourceUserID:     buyer.ID,
		RankID:           rankID,
		BalanceBefore:    before,
		BalanceAfter:     after,
		Remark:           fmt.Sprintf("%s-%s", earningType, req.RequestNo),
	}
	if err := d.earnings.Create(ctx, tx, earning); err != nil {
		return nil, fmt.Errorf("记录佣金流水失败: %w", err)
	}
	return earning, nil
}
