package mlm

import (
	"context"
	"fmt"

	"mlmsystem/internal/model"
	"mlmsystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DownlineQualifier 统计满足条件的直属线路数
type DownlineQualifier struct {
	users      *repository.UserRepository
	maxDepth   int
	nodeBudget int
	log        *logrus.Logger
}

func NewDownlineQualifier(users *repository.UserRepository, maxDepth, nodeBudget int, log *logrus.Logger) *DownlineQualifier {
	return &DownlineQualifier{
		users:      users,
		maxDepth:   maxDepth,
		nodeBudget: nodeBudget,
		log:        log,
	}
}

func (q *DownlineQualifier) MaxDepth() int {
	return q.maxDepth
}

// CountQualifyingLines 以 userID 的每个直属下线为一条线路，线路内（含根，深度不超过
// maxDepth）任一成员满足 pred 即计为一条。返回线路数而不是成员数。
//
// 超出深度的成员不参与判断；整个调用访问的节点数超过预算后，剩余线路一律按不满足处理。
func (q *DownlineQualifier) CountQualifyingLines(ctx context.Context, tx *gorm.DB, userID int64, pred func(*model.User) bool, maxDepth int) (int, error) {
	if maxDepth <= 0 {
		return 0, nil
	}

	roots, err := q.users.ListChildren(ctx, tx, []int64{userID})
	if err != nil {
		return 0, fmt.Errorf("查询直属下线失败: %w", err)
	}

	visited := map[int64]bool{userID: true}
	budget := q.nodeBudget
	count := 0

	for _, root := range roots {
		if visited[root.ID] {
			continue
		}
		visited[root.ID] = true
		budget--

		qualified, err := q.scanLine(ctx, tx, root, pred, maxDepth, visited, &budget)
		if err != nil {
			return 0, err
		}
		if qualified {
			count++
		}
		if budget <= 0 {
			q.log.WithFields(logrus.Fields{
				"user_id": userID,
				"budget":  q.nodeBudget,
				"lines":   count,
			}).Warn("下线遍历超出节点预算，剩余线路按不满足处理")
			break
		}
	}

	return count, nil
}

// scanLine 按层广度优先扫描一条线路，每层一次查询
func (q *DownlineQualifier) scanLine(ctx context.Context, tx *gorm.DB, root *model.User, pred func(*model.User) bool,
	maxDepth int, visited map[int64]bool, budget *int) (bool, error) {

	frontier := []*model.User{root}
	for depth := 1; len(frontier) > 0; depth++ {
		for _, u := range frontier {
			if pred(u) {
				return true, nil
			}
		}
		if depth >= maxDepth || *budget <= 0 {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		ids := make([]int64, 0, len(frontier))
		for _, u := range frontier {
			ids = append(ids, u.ID)
		}
		children, err := q.users.ListChildren(ctx, tx, ids)
		if err != nil {
			return false, fmt.Errorf("查询下线失败: %w", err)
		}

		next := make([]*model.User, 0, len(children))
		for _, c := range children {
			if visited[c.ID] || *budget <= 0 {
				continue
			}
			visited[c.ID] = true
			*budget--
			next = append(next, c)
		}
		frontier = next
	}
	return false, nil
}
