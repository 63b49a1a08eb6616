package mlm

import (
	"context"
	"fmt"
	"time"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RankChangeEvent 等级变更事件载荷
type RankChangeEvent struct {
	UserID           int64     `json:"user_id"`
	FromRankID       int64     `json:"from_rank_id"`
	FromRank         string    `json:"from_rank"`
	ToRankID         int64     `json:"to_rank_id"`
	ToRank           string    `json:"to_rank"`
	PackageRequestID *int64    `json:"package_request_id,omitempty"`
	ChangedAt        time.Time `json:"changed_at"`
}

// RankUpdater 根据积分和下线结构重新计算用户等级
type RankUpdater struct {
	users     *repository.UserRepository
	changes   *repository.RankChangeRepository
	outbox    *repository.OutboxRepository
	qualifier *DownlineQualifier
	topic     string
	log       *logrus.Logger
}

func NewRankUpdater(users *repository.UserRepository, changes *repository.RankChangeRepository,
	outbox *repository.OutboxRepository, qualifier *DownlineQualifier, topic string, log *logrus.Logger) *RankUpdater {
	return &RankUpdater{
		users:     users,
		changes:   changes,
		outbox:    outbox,
		qualifier: qualifier,
		topic:     topic,
		log:       log,
	}
}

// Evaluate 自高向低取第一个满足条件的等级，都不满足时取最低等级
func (u *RankUpdater) Evaluate(ctx context.Context, tx *gorm.DB, table *RankTable, user *model.User) (*Tier, error) {
	for _, tier := range table.Descending() {
		ok, err := tier.Promotable(ctx, tx, user, u.qualifier)
		if err != nil {
			return nil, fmt.Errorf("校验等级 %s 失败: %w", tier.Rank.Title, err)
		}
		if ok {
			return tier, nil
		}
	}
	return table.Lowest(), nil
}

// Recompute 等级不变时返回 nil 且不写任何数据，可重复执行
func (u *RankUpdater) Recompute(ctx context.Context, tx *gorm.DB, table *RankTable, user *model.User, requestID *int64) (*RankChangeEvent, error) {
	tier, err := u.Evaluate(ctx, tx, table, user)
	if err != nil {
		return nil, err
	}
	if tier.Rank.ID == user.RankID {
		return nil, nil
	}

	event := &RankChangeEvent{
		UserID:           user.ID,
		FromRankID:       user.RankID,
		ToRankID:         tier.Rank.ID,
		ToRank:           tier.Rank.Title,
		PackageRequestID: requestID,
		ChangedAt:        time.Now(),
	}
	if from := table.Tier(user.RankID); from != nil {
		event.FromRank = from.Rank.Title
	}

	if err := u.users.UpdateRank(ctx, tx, user.ID, tier.Rank.ID); err != nil {
		return nil, fmt.Errorf("更新等级失败: userID=%d: %w", user.ID, err)
	}

	change := &model.RankChange{
		UserID:           user.ID,
		FromRankID:       user.RankID,
		ToRankID:         tier.Rank.ID,
		PackageRequestID: requestID,
	}
	if err := u.changes.Create(ctx, tx, change); err != nil {
		return nil, fmt.Errorf("记录等级变更失败: %w", err)
	}

	if err := u.outbox.Enqueue(ctx, tx, u.topic, model.EventUserRankChanged, fmt.Sprintf("%d", user.ID), event); err != nil {
		return nil, fmt.Errorf("写入等级变更消息失败: %w", err)
	}

	user.RankID = tier.Rank.ID

	u.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"from":    event.FromRank,
		"to":      event.ToRank,
	}).Info("用户等级变更")

	return event, nil
}
