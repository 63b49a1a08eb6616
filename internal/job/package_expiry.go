package job

import (
	"context"
	"fmt"
	"time"

	"mlmsystem/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PackageExpiryJob 定时清除已过期的当前套餐
// 只修改 current_package_id / package_expiry_date，不影响积分、余额和等级
type PackageExpiryJob struct {
	userRepo *repository.UserRepository
	cron     *cron.Cron
	spec     string
	log      *logrus.Logger
	now      func() time.Time
}

func NewPackageExpiryJob(db *gorm.DB, spec string, log *logrus.Logger) *PackageExpiryJob {
	return &PackageExpiryJob{
		userRepo: repository.NewUserRepository(db),
		cron:     cron.New(),
		spec:     spec,
		log:      log,
		now:      time.Now,
	}
}

func (j *PackageExpiryJob) Start() error {
	_, err := j.cron.AddFunc(j.spec, func() {
		j.Run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("注册套餐过期任务失败: %w", err)
	}

	j.cron.Start()
	j.log.WithField("spec", j.spec).Info("[PackageExpiryJob] 套餐过期任务启动")
	return nil
}

func (j *PackageExpiryJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("[PackageExpiryJob] 任务停止")
}

// Run 执行一次清理，返回清理的用户数
func (j *PackageExpiryJob) Run(ctx context.Context) int64 {
	cleared, err := j.userRepo.ClearExpiredPackages(ctx, j.now())
	if err != nil {
		j.log.WithError(err).Error("[PackageExpiryJob] 清理过期套餐失败")
		return 0
	}
	if cleared > 0 {
		j.log.WithField("count", cleared).Info("[PackageExpiryJob] 已清理过期套餐")
	}
	return cleared
}
