package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mlmsystem/internal/config"
	"mlmsystem/internal/handler"
	"mlmsystem/internal/infrastructure/cache"
	"mlmsystem/internal/infrastructure/database"
	"mlmsystem/internal/infrastructure/mq"
	"mlmsystem/internal/job"
	"mlmsystem/internal/logger"
	"mlmsystem/internal/mlm"
	"mlmsystem/internal/service"
	"mlmsystem/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器号")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, *workerID, log); err != nil {
		log.WithError(err).Fatal("服务异常退出")
	}
	log.Info("服务已关闭")
}

// run 返回前按启动的逆序释放资源
func run(cfg *config.Config, workerID int64, log *logrus.Logger) error {
	ids, err := idgen.NewSnowflake(workerID)
	if err != nil {
		return fmt.Errorf("初始化 ID 生成器失败: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.Seed(context.Background(), db, cfg.Ranks, cfg.Packages); err != nil {
		return fmt.Errorf("写入等级与套餐失败: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.InitRedis(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("初始化 Redis 失败: %w", err)
		}
		defer redisClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			return fmt.Errorf("初始化 Kafka 失败: %w", err)
		}
		defer producer.Close()

		outboxSender := job.NewOutboxSender(db, producer, cfg.Business.MaxRetryCount, log)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			outboxSender.Start(ctx)
		}()
		// 先停投递协程，再关闭 producer
		defer func() {
			outboxSender.Stop()
			wg.Wait()
		}()
	} else {
		log.Warn("Kafka 未启用，事件保留在 outbox_message 表中")
	}

	expiryJob := job.NewPackageExpiryJob(db, cfg.Business.PackageExpiryCron, log)
	if err := expiryJob.Start(); err != nil {
		return fmt.Errorf("启动套餐过期任务失败: %w", err)
	}
	defer expiryJob.Stop()

	engine := mlm.NewEngine(db, mlm.Options{
		MaxChainDepth:      cfg.Business.MaxChainDepth,
		MaxDownlineDepth:   cfg.Business.MaxDownlineDepth,
		DownlineNodeBudget: cfg.Business.DownlineNodeBudget,
		IndirectFloorRank:  cfg.Business.IndirectFloorRank,
		RankEventTopic:     cfg.Kafka.Topic.RankEvents,
		IDs:                ids,
	}, log)

	h := handler.NewHandler(
		service.NewUserService(db, log),
		service.NewPackageRequestService(db, ids, log),
		service.NewApprovalService(db, redisClient, engine, cfg, log),
		service.NewRankService(db, engine),
	)
	router := handler.SetupRouter(h, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")

	// 审核事务可能持续较久，关闭时等待到审核超时
	shutdownTimeout := time.Duration(cfg.Business.ApprovalTimeoutSeconds) * time.Second
	if shutdownTimeout < 5*time.Second {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("服务关闭异常")
	}
	return nil
}
