package mlm

import (
	"context"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"
	"mlmsystem/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PointsPropagator 把套餐积分加到购买人及其全部上级
type PointsPropagator struct {
	users    *repository.UserRepository
	earnings *repository.EarningRepository
	ids      *idgen.Snowflake
}

func NewPointsPropagator(users *repository.UserRepository, earnings *repository.EarningRepository, ids *idgen.Snowflake) *PointsPropagator {
	return &PointsPropagator{users: users, earnings: earnings, ids: ids}
}

// Propagate 每个接收人写一条 points 流水，并同步更新传入的 User 对象
func (p *PointsPropagator) Propagate(ctx context.Context, tx *gorm.DB, req *model.PackageRequest, points int64,
	buyer *model.User, ancestors []*model.User) ([]*model.Earning, error) {

	if points <= 0 {
		return nil, nil
	}

	recipients := make([]*model.User, 0, len(ancestors)+1)
	recipients = append(recipients, buyer)
	recipients = append(recipients, ancestors...)

	rows := make([]*model.Earning, 0, len(recipients))
	for _, u := range recipients {
		before := u.Points
		if err := p.users.AddPoints(ctx, tx, u.ID, points); err != nil {
			return nil, fmt.Errorf("增加积分失败: userID=%d: %w", u.ID, err)
		}
		u.Points += points

		earning := &model.Earning{
			EarningNo:        p.ids.EarningNo(),
			UserID:           u.ID,
			Amount:           decimal.NewFromInt(points),
			Type:             model.EarningTypePoints,
			PackageRequestID: req.ID,
			SourceUserID:     buyer.ID,
			BalanceBefore:    decimal.NewFromInt(before),
			BalanceAfter:     decimal.NewFromInt(u.Points),
			Remark:           fmt.Sprintf("积分-%s", req.RequestNo),
		}
		if err := p.earnings.Create(ctx, tx, earning); err != nil {
			return nil, fmt.Errorf("记录积分流水失败: %w", err)
		}
		rows = append(rows, earning)
	}
	return rows, nil
}
