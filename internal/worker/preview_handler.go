package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"resumePress/internal/database"
	"resumePress/internal/storage"
	"resumePress/internal/tasks"
)

const previewQuality = 80

// PreviewHandler 消费 preview:render 任务，生成文档缩略图。
// 缩略图是锦上添花的功能，失败不影响文档可用性。
type PreviewHandler struct {
	db      *gorm.DB
	storage *storage.Client
	logger  *slog.Logger
}

// NewPreviewHandler 创建任务处理器。
func NewPreviewHandler(db *gorm.DB, storageClient *storage.Client, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{
		db:      db,
		storage: storageClient,
		logger:  logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.PreviewRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("document_id", uint64(payload.DocumentID)),
	)

	var doc database.Document
	if err := h.db.WithContext(ctx).First(&doc, payload.DocumentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("document not found, skipping preview")
			return nil
		}
		return fmt.Errorf("query document: %w", err)
	}

	sections, err := doc.DecodeSections()
	if err != nil {
		log.Warn("decode sections failed, skipping preview", slog.Any("error", err))
		return nil
	}
	if len(sections.Visible()) == 0 {
		log.Info("no visible sections, skipping preview")
		return nil
	}

	imageBytes, err := renderPreviewImage(sections, previewQuality)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}

	objectKey := fmt.Sprintf("documents/%d/previews/%d.jpg", payload.UserID, doc.ID)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(imageBytes), int64(len(imageBytes)), "image/jpeg"); err != nil {
		return fmt.Errorf("upload preview image: %w", err)
	}

	if err := h.db.WithContext(ctx).Model(&doc).Update("preview_key", objectKey).Error; err != nil {
		return fmt.Errorf("update document preview key: %w", err)
	}

	log.Info("preview rendered", slog.String("object_key", objectKey))
	return nil
}
