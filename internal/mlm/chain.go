package mlm

import (
	"context"
	"errors"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChainWalker 沿推荐关系向上查找上级链路
type ChainWalker struct {
	users *repository.UserRepository
	log   *logrus.Logger
}

func NewChainWalker(users *repository.UserRepository, log *logrus.Logger) *ChainWalker {
	return &ChainWalker{users: users, log: log}
}

// Walk 从 start 的推荐人开始向上遍历，按由近到远返回上级（不含 start 本身）
//
// 以下情况遍历停止但不报错：
//   - 推荐人为空
//   - 达到 maxDepth
//   - 遇到本次遍历中已出现过的用户（环）
//   - 推荐人在存储中不存在（断链）
//
// 每个上级都以行锁读取，并发审核在共同上级上串行。
func (w *ChainWalker) Walk(ctx context.Context, tx *gorm.DB, start *model.User, maxDepth int) ([]*model.User, error) {
	ancestors := make([]*model.User, 0, maxDepth)
	visited := map[int64]bool{start.ID: true}

	parentID := start.ParentID
	for parentID != nil && len(ancestors) < maxDepth {
		if visited[*parentID] {
			w.log.WithFields(logrus.Fields{
				"user_id":   start.ID,
				"parent_id": *parentID,
				"depth":     len(ancestors),
			}).Warn("推荐链存在环，停止向上遍历")
			break
		}

		parent, err := w.users.GetByIDForUpdate(ctx, tx, *parentID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				w.log.WithFields(logrus.Fields{
					"user_id":   start.ID,
					"parent_id": *parentID,
					"depth":     len(ancestors),
				}).Warn("推荐人不存在，推荐链在此截断")
				break
			}
			return nil, fmt.Errorf("查询上级失败: %w", err)
		}

		visited[parent.ID] = true
		ancestors = append(ancestors, parent)
		parentID = parent.ParentID
	}

	return ancestors, nil
}
