package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumePress/internal/api/middleware"
	"resumePress/internal/database"
	"resumePress/internal/export"
	"resumePress/internal/pdfgen"
	"resumePress/internal/tasks"
)

// ExportHandler 负责异步 PDF 任务：从分区模型生成、烘焙覆盖编辑、
// 取消在途任务以及任务状态查询。进度经 Redis Pub/Sub 推送到 WebSocket。
type ExportHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	redis       redis.UniversalClient
	storage     ObjectStore
	logger      *slog.Logger
}

// NewExportHandler 构造 ExportHandler。
func NewExportHandler(db *gorm.DB, asynqClient *asynq.Client, redisClient redis.UniversalClient, store ObjectStore, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		db:          db,
		asynqClient: asynqClient,
		redis:       redisClient,
		storage:     store,
		logger:      logger,
	}
}

type generateRequest struct {
	Template string         `json:"template" binding:"required"`
	Options  pdfgen.Options `json:"options"`
}

// GeneratePDF 将分区模型的 PDF 生成任务入队并立即返回 202。
func (h *ExportHandler) GeneratePDF(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if _, err := pdfgen.StyleFor(pdfgen.Template(req.Template)); err != nil {
		BadRequest(c, "unknown template")
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	doc, err := getDocumentForUser(c.Request.Context(), h.db, c.Param("id"), userID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	jobID := uuid.NewString()
	payload := tasks.PDFGeneratePayload{
		JobID:         jobID,
		DocumentID:    doc.ID,
		UserID:        userID,
		Template:      req.Template,
		Options:       req.Options,
		CorrelationID: middleware.GetCorrelationID(c),
	}
	task, err := tasks.NewPDFGenerateTask(payload)
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	h.enqueueJob(c, doc.ID, userID, jobID, database.JobKindGenerate, task)
}

// ExportPDF 将覆盖编辑的烘焙导出任务入队。
func (h *ExportHandler) ExportPDF(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	doc, err := getDocumentForUser(c.Request.Context(), h.db, c.Param("id"), userID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	content, err := doc.DecodeContent()
	if err != nil {
		Internal(c, "failed to decode document")
		return
	}
	if !content.HasContent() {
		Conflict(c, "document has no content to export")
		return
	}

	jobID := uuid.NewString()
	task, err := tasks.NewPDFExportTask(tasks.PDFExportPayload{
		JobID:         jobID,
		DocumentID:    doc.ID,
		UserID:        userID,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	h.enqueueJob(c, doc.ID, userID, jobID, database.JobKindExport, task)
}

func (h *ExportHandler) enqueueJob(c *gin.Context, documentID, userID uint, jobID, kind string, task *asynq.Task) {
	ctx := c.Request.Context()

	job := database.ExportJob{
		JobID:      jobID,
		DocumentID: documentID,
		UserID:     userID,
		Kind:       kind,
		Status:     database.JobStatusPending,
	}
	if err := h.db.WithContext(ctx).Create(&job).Error; err != nil {
		Internal(c, "failed to record job")
		return
	}

	info, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(3))
	if err != nil {
		_ = h.db.WithContext(ctx).Model(&job).
			Updates(map[string]any{"status": database.JobStatusFailed, "error": "enqueue failed"}).Error
		Internal(c, "failed to enqueue job")
		return
	}

	h.loggerFromContext(c).Info("pdf job enqueued",
		slog.String("job_id", jobID),
		slog.String("kind", kind),
		slog.String("task_id", info.ID),
		slog.Uint64("document_id", uint64(documentID)),
	)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// CancelJob 发布取消信号。取消是协作式的：
// 生成器在分区之间检查信号，已完成的任务不受影响。
func (h *ExportHandler) CancelJob(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	jobID := c.Param("jobID")
	ctx := c.Request.Context()

	var job database.ExportJob
	if err := h.db.WithContext(ctx).
		Where("job_id = ? AND user_id = ?", jobID, userID).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to query job")
		return
	}

	switch job.Status {
	case database.JobStatusDone, database.JobStatusFailed, database.JobStatusCancelled:
		Conflict(c, "job already finished")
		return
	}

	if err := h.redis.Publish(ctx, tasks.CancelChannel, jobID).Err(); err != nil {
		Internal(c, "failed to publish cancel")
		return
	}

	h.loggerFromContext(c).Info("cancel requested", slog.String("job_id", jobID))
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "cancelling"})
}

type jobStatusResponse struct {
	JobID     string `json:"job_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	PageCount int    `json:"page_count,omitempty"`
	Error     string `json:"error,omitempty"`
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// downloadSuffix 区分两类产物的下载文件名。
func downloadSuffix(kind string) string {
	if kind == database.JobKindExport {
		return "edited"
	}
	return ""
}

// GetJobStatus 查询任务状态，完成的任务附带预签名下载链接。
func (h *ExportHandler) GetJobStatus(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	jobID := c.Param("jobID")
	ctx := c.Request.Context()

	var job database.ExportJob
	if err := h.db.WithContext(ctx).
		Where("job_id = ? AND user_id = ?", jobID, userID).
		First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, "failed to query job")
		return
	}

	resp := jobStatusResponse{
		JobID:     job.JobID,
		Kind:      job.Kind,
		Status:    job.Status,
		PageCount: job.PageCount,
		Error:     job.Error,
	}

	if job.Status == database.JobStatusDone && job.ObjectKey != "" {
		var title string
		var doc database.Document
		if err := h.db.WithContext(ctx).Select("title").First(&doc, job.DocumentID).Error; err == nil {
			title = doc.Title
		}
		resp.Filename = export.Filename(title, downloadSuffix(job.Kind))

		url, err := h.storage.GeneratePresignedDownloadURL(ctx, job.ObjectKey, resp.Filename, 5*time.Minute)
		if err != nil {
			Internal(c, "failed to generate download link")
			return
		}
		resp.URL = url
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ExportHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
