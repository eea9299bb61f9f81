package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumePress/internal/database"
	"resumePress/internal/errcode"
	"resumePress/internal/jobs"
	"resumePress/internal/pdfgen"
	"resumePress/internal/storage"
	"resumePress/internal/tasks"
)

// GenerateHandler 消费 pdf:generate 任务：
// 从分区模型渲染 PDF、上传对象存储并通过 Redis 推送进度。
type GenerateHandler struct {
	db      *gorm.DB
	storage *storage.Client
	redis   redis.UniversalClient
	logger  *slog.Logger
	manager *jobs.Manager
}

// NewGenerateHandler 创建任务处理器。
func NewGenerateHandler(db *gorm.DB, storageClient *storage.Client, redisClient redis.UniversalClient, logger *slog.Logger, manager *jobs.Manager) *GenerateHandler {
	return &GenerateHandler{
		db:      db,
		storage: storageClient,
		redis:   redisClient,
		logger:  logger,
		manager: manager,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *GenerateHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.PDFGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("job_id", payload.JobID),
		slog.Uint64("document_id", uint64(payload.DocumentID)),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)

	job, err := h.loadJob(ctx, payload.JobID)
	if err != nil {
		log.Warn("job record missing, skipping task", slog.Any("error", err))
		return nil
	}
	if job.Status == database.JobStatusCancelled {
		log.Info("job cancelled before start")
		return nil
	}

	var doc database.Document
	if err := h.db.WithContext(ctx).First(&doc, payload.DocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("document not found, skipping task")
			h.failJob(ctx, job, "document not found")
			h.notifyError(ctx, payload.UserID, JobNotifyMessage{
				Type:          "error",
				JobID:         payload.JobID,
				DocumentID:    payload.DocumentID,
				CorrelationID: payload.CorrelationID,
				ErrorCode:     errcode.ResourceMissing,
				ErrorMessage:  "document not found",
			}, log)
			return nil
		}
		return fmt.Errorf("query document: %w", err)
	}

	sections, err := doc.DecodeSections()
	if err != nil {
		h.failJob(ctx, job, "invalid section model")
		return fmt.Errorf("decode sections: %w", asynq.SkipRetry)
	}

	jobCtx, err := h.manager.Register(ctx, payload.JobID)
	if err != nil {
		// 同一 JobID 已在运行，多半是重复投递。
		log.Warn("job already registered, skipping duplicate", slog.Any("error", err))
		return nil
	}
	defer h.manager.Finish(payload.JobID)

	h.setJobStatus(ctx, job, database.JobStatusRunning)

	defer func() {
		if retErr == nil || errors.Is(retErr, asynq.SkipRetry) {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}
		h.failJob(context.WithoutCancel(ctx), job, strings.TrimSpace(retErr.Error()))
		h.notifyError(context.WithoutCancel(ctx), payload.UserID, JobNotifyMessage{
			Type:          "error",
			JobID:         payload.JobID,
			DocumentID:    payload.DocumentID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}, log)
	}()

	progress := func(percent int, status string) {
		msg := JobNotifyMessage{
			Type:          "progress",
			JobID:         payload.JobID,
			DocumentID:    payload.DocumentID,
			Progress:      percent,
			Status:        status,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.OK,
		}
		if err := publishJobNotify(jobCtx, h.redis, payload.UserID, msg); err != nil {
			log.Warn("publish progress failed", slog.Any("error", err))
		}
	}

	log.Info("starting pdf generation",
		slog.String("template", payload.Template),
		slog.Int("sections", len(sections)),
	)

	result, err := pdfgen.Generate(jobCtx, sections, pdfgen.Template(payload.Template), payload.Options, progress)
	if err != nil {
		if errors.Is(err, pdfgen.ErrCancelled) {
			log.Info("pdf generation cancelled")
			h.setJobStatus(context.WithoutCancel(ctx), job, database.JobStatusCancelled)
			h.notifyError(context.WithoutCancel(ctx), payload.UserID, JobNotifyMessage{
				Type:          "cancelled",
				JobID:         payload.JobID,
				DocumentID:    payload.DocumentID,
				CorrelationID: payload.CorrelationID,
				ErrorCode:     errcode.JobCancelled,
				ErrorMessage:  "generation cancelled",
			}, log)
			return nil
		}
		if errors.Is(err, pdfgen.ErrUnknownTemplate) {
			h.failJob(ctx, job, "unknown template")
			return fmt.Errorf("unknown template %q: %w", payload.Template, asynq.SkipRetry)
		}
		return fmt.Errorf("generate pdf: %w", err)
	}

	objectKey := fmt.Sprintf("documents/%d/exports/%s.pdf", payload.UserID, payload.JobID)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(result.PDF), int64(len(result.PDF)), "application/pdf"); err != nil {
		return fmt.Errorf("upload pdf: %w", err)
	}

	if err := h.db.WithContext(ctx).Model(job).Updates(map[string]any{
		"status":     database.JobStatusDone,
		"object_key": objectKey,
		"page_count": result.PageCount,
	}).Error; err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if err := h.db.WithContext(ctx).Model(&doc).Updates(map[string]any{
		"pdf_key": objectKey,
		"status":  "generated",
	}).Error; err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if err := publishJobNotify(ctx, h.redis, payload.UserID, JobNotifyMessage{
		Type:          "complete",
		JobID:         payload.JobID,
		DocumentID:    payload.DocumentID,
		Progress:      100,
		ObjectKey:     objectKey,
		PageCount:     result.PageCount,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}); err != nil {
		log.Error("publish completion failed", slog.Any("error", err))
	}

	log.Info("pdf generation completed", slog.Int("pages", result.PageCount))
	return nil
}

func (h *GenerateHandler) loadJob(ctx context.Context, jobID string) (*database.ExportJob, error) {
	var job database.ExportJob
	if err := h.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (h *GenerateHandler) setJobStatus(ctx context.Context, job *database.ExportJob, status string) {
	if err := h.db.WithContext(ctx).Model(job).Update("status", status).Error; err != nil {
		h.logger.Error("update job status failed",
			slog.String("job_id", job.JobID),
			slog.String("status", status),
			slog.Any("error", err),
		)
	}
}

func (h *GenerateHandler) failJob(ctx context.Context, job *database.ExportJob, reason string) {
	if err := h.db.WithContext(ctx).Model(job).Updates(map[string]any{
		"status": database.JobStatusFailed,
		"error":  reason,
	}).Error; err != nil {
		h.logger.Error("mark job failed errored",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}
}

func (h *GenerateHandler) notifyError(ctx context.Context, userID uint, msg JobNotifyMessage, log *slog.Logger) {
	if err := publishJobNotify(ctx, h.redis, userID, msg); err != nil {
		log.Error("publish job notification failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
