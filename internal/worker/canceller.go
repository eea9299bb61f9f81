package worker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumePress/internal/database"
	"resumePress/internal/jobs"
	"resumePress/internal/tasks"
)

// CancelListener 订阅取消频道，把取消信号转交给任务注册表。
// 尚未开始的任务直接把 ExportJob 标记为 cancelled，
// 处理器启动时看到该状态会直接跳过。
type CancelListener struct {
	db      *gorm.DB
	redis   redis.UniversalClient
	manager *jobs.Manager
	logger  *slog.Logger
}

// NewCancelListener 构造取消监听器。
func NewCancelListener(db *gorm.DB, redisClient redis.UniversalClient, manager *jobs.Manager, logger *slog.Logger) *CancelListener {
	return &CancelListener{
		db:      db,
		redis:   redisClient,
		manager: manager,
		logger:  logger,
	}
}

// Run 阻塞消费取消消息，直到 ctx 结束。
func (l *CancelListener) Run(ctx context.Context) {
	pubsub := l.redis.Subscribe(ctx, tasks.CancelChannel)
	defer pubsub.Close()

	l.logger.Info("cancel listener started", slog.String("channel", tasks.CancelChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				l.logger.Warn("cancel channel closed")
				return
			}
			l.handle(ctx, strings.TrimSpace(msg.Payload))
		}
	}
}

func (l *CancelListener) handle(ctx context.Context, jobID string) {
	if jobID == "" {
		return
	}
	log := l.logger.With(slog.String("job_id", jobID))

	if l.manager.Cancel(jobID) {
		// 在途任务：处理器收到 context 取消后自行收尾。
		log.Info("cancel signal delivered to running job")
		return
	}

	// 不在本实例运行：若任务还在排队，直接落库标记取消。
	result := l.db.WithContext(ctx).
		Model(&database.ExportJob{}).
		Where("job_id = ? AND status = ?", jobID, database.JobStatusPending).
		Update("status", database.JobStatusCancelled)
	if result.Error != nil {
		log.Error("mark pending job cancelled failed", slog.Any("error", result.Error))
		return
	}
	if result.RowsAffected > 0 {
		log.Info("pending job marked cancelled")
	}
}
