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
	"resumePress/internal/export"
	"resumePress/internal/storage"
	"resumePress/internal/tasks"
)

// ExportHandler 消费 pdf:export 任务：把覆盖编辑烘焙为新 PDF 并上传。
// 烘焙是整页重绘，耗时远小于生成，不做分段进度。
type ExportHandler struct {
	db      *gorm.DB
	storage *storage.Client
	redis   redis.UniversalClient
	logger  *slog.Logger
}

// NewExportHandler 创建任务处理器。
func NewExportHandler(db *gorm.DB, storageClient *storage.Client, redisClient redis.UniversalClient, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		db:      db,
		storage: storageClient,
		redis:   redisClient,
		logger:  logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.PDFExportPayload
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

	var job database.ExportJob
	if err := h.db.WithContext(ctx).Where("job_id = ?", payload.JobID).First(&job).Error; err != nil {
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
			h.fail(ctx, &job, "document not found")
			msg := JobNotifyMessage{
				Type:          "error",
				JobID:         payload.JobID,
				DocumentID:    payload.DocumentID,
				CorrelationID: payload.CorrelationID,
				ErrorCode:     errcode.ResourceMissing,
				ErrorMessage:  "document not found",
			}
			if err := publishJobNotify(ctx, h.redis, payload.UserID, msg); err != nil {
				log.Error("publish job notification failed", slog.Any("error", err))
			}
			return nil
		}
		return fmt.Errorf("query document: %w", err)
	}

	h.update(ctx, &job, map[string]any{"status": database.JobStatusRunning})

	defer func() {
		if retErr == nil || errors.Is(retErr, asynq.SkipRetry) {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}
		h.fail(context.WithoutCancel(ctx), &job, strings.TrimSpace(retErr.Error()))
		msg := JobNotifyMessage{
			Type:          "error",
			JobID:         payload.JobID,
			DocumentID:    payload.DocumentID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := publishJobNotify(context.WithoutCancel(ctx), h.redis, payload.UserID, msg); err != nil {
			log.Error("publish job notification failed", slog.Any("error", err))
		}
	}()

	content, err := doc.DecodeContent()
	if err != nil {
		h.fail(ctx, &job, "invalid document content")
		return fmt.Errorf("decode content: %w", asynq.SkipRetry)
	}

	pdfBytes, err := export.Bake(content)
	if err != nil {
		if errors.Is(err, export.ErrNoContent) {
			h.fail(ctx, &job, "document has no content")
			return fmt.Errorf("bake pdf: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("bake pdf: %w", err)
	}

	objectKey := fmt.Sprintf("documents/%d/exports/%s.pdf", payload.UserID, payload.JobID)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		return fmt.Errorf("upload pdf: %w", err)
	}

	h.update(ctx, &job, map[string]any{
		"status":     database.JobStatusDone,
		"object_key": objectKey,
		"page_count": content.PageCount(),
	})
	if err := h.db.WithContext(ctx).Model(&doc).Updates(map[string]any{
		"pdf_key": objectKey,
		"status":  "exported",
	}).Error; err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if err := publishJobNotify(ctx, h.redis, payload.UserID, JobNotifyMessage{
		Type:          "complete",
		JobID:         payload.JobID,
		DocumentID:    payload.DocumentID,
		Progress:      100,
		ObjectKey:     objectKey,
		PageCount:     content.PageCount(),
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}); err != nil {
		log.Error("publish completion failed", slog.Any("error", err))
	}

	log.Info("pdf export completed", slog.Int("pages", content.PageCount()))
	return nil
}

func (h *ExportHandler) update(ctx context.Context, job *database.ExportJob, fields map[string]any) {
	if err := h.db.WithContext(ctx).Model(job).Updates(fields).Error; err != nil {
		h.logger.Error("update export job failed",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
	}
}

func (h *ExportHandler) fail(ctx context.Context, job *database.ExportJob, reason string) {
	h.update(ctx, job, map[string]any{
		"status": database.JobStatusFailed,
		"error":  reason,
	})
}
