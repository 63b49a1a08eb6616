package job

import (
	"context"
	"sync"
	"time"

	"mlmsystem/internal/model"
	"mlmsystem/internal/monitoring"
	"mlmsystem/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sender 消息投递端，生产环境为 mq.Producer
type Sender interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 轮询本地消息表并投递到 Kafka
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	sender     Sender
	log        *logrus.Logger
	stopCh     chan struct{}
	stopOnce   sync.Once
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, sender Sender, maxRetry int, log *logrus.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		sender:     sender,
		log:        log,
		stopCh:     make(chan struct{}),
		interval:   200 * time.Millisecond,
		batchSize:  100,
		maxRetry:   maxRetry,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

// Stop 可重复调用；Start 返回后才能关闭 sender
func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("[OutboxSender] 查询消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.send(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) bool {
	fields := logrus.Fields{
		"id":         msg.ID,
		"event_id":   msg.EventID,
		"event_type": msg.EventType,
		"topic":      msg.Topic,
	}

	err := s.sender.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		monitoring.OutboxPublished.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			s.log.WithFields(fields).WithError(updateErr).Error("[OutboxSender] 更新消息状态失败")
		}
		return true
	}

	monitoring.OutboxPublished.WithLabelValues("error").Inc()
	s.log.WithFields(fields).WithError(err).Warn("[OutboxSender] 消息发送失败")

	exhausted, updateErr := s.outboxRepo.RecordFailure(ctx, msg, s.maxRetry)
	if updateErr != nil {
		s.log.WithFields(fields).WithError(updateErr).Error("[OutboxSender] 记录重试次数失败")
		return false
	}
	if exhausted {
		s.log.WithFields(fields).Error("[OutboxSender] 消息超过最大重试次数，标记为失败")
	}
	return false
}
