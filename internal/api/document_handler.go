package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"resumePress/internal/api/middleware"
	"resumePress/internal/database"
	"resumePress/internal/export"
	"resumePress/internal/extract"
	"resumePress/internal/tasks"
)

// ObjectStore 是处理器需要的最小存储接口，便于测试替换。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	GeneratePresignedDownloadURL(ctx context.Context, objectKey, filename string, duration time.Duration) (string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}

// 上传的 PDF 限制 15MB，够放扫描件但挡住滥用。
const maxUploadBytes = 15 << 20

// DocumentHandler 负责文档的上传、查询与删除。
type DocumentHandler struct {
	db           *gorm.DB
	asynqClient  *asynq.Client
	storage      ObjectStore
	logger       *slog.Logger
	clamdAddr    string
	maxDocuments int
}

// NewDocumentHandler 构造 DocumentHandler。
func NewDocumentHandler(db *gorm.DB, asynqClient *asynq.Client, store ObjectStore, logger *slog.Logger, clamdAddr string, maxDocuments int) *DocumentHandler {
	return &DocumentHandler{
		db:           db,
		asynqClient:  asynqClient,
		storage:      store,
		logger:       logger,
		clamdAddr:    clamdAddr,
		maxDocuments: maxDocuments,
	}
}

var errInvalidDocumentID = errors.New("invalid document id")

type documentListItem struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type documentResponse struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Content   json.RawMessage `json:"content"`
	Sections  json.RawMessage `json:"sections"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UploadDocument 接收 PDF 上传：病毒扫描、文本抽取、建档并触发缩略图渲染。
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var count int64
	if err := h.db.WithContext(ctx).
		Model(&database.Document{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		Internal(c, "failed to count documents")
		return
	}
	if h.maxDocuments > 0 && count >= int64(h.maxDocuments) {
		Forbidden(c, "document limit reached")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > maxUploadBytes {
		BadRequest(c, "file too large")
		return
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxUploadBytes+1))
	reader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if len(data) > maxUploadBytes {
		BadRequest(c, "file too large")
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		BadRequest(c, "file is not a pdf")
		return
	}

	if err := h.scanUpload(data); err != nil {
		if errors.Is(err, errMaliciousFile) {
			logger.Warn("upload rejected by scanner", slog.String("filename", file.Filename))
			BadRequest(c, "malicious file detected")
			return
		}
		logger.Error("scan upload failed", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return
	}

	title := strings.TrimSuffix(file.Filename, ".pdf")
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}

	result, err := extract.FromPDF(data, title)
	if err != nil {
		logger.Warn("extract pdf failed", slog.Any("error", err))
		BadRequest(c, "could not parse pdf")
		return
	}

	sourceKey := fmt.Sprintf("documents/%d/source/%s.pdf", userID, uuid.NewString())
	if _, err := h.storage.UploadFile(ctx, sourceKey, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		logger.Error("upload source pdf failed", slog.Any("error", err))
		Internal(c, "failed to store file")
		return
	}

	doc := database.Document{
		Title:     title,
		UserID:    userID,
		SourceKey: sourceKey,
		Status:    "ready",
	}
	if err := doc.SetContent(result.Document); err != nil {
		Internal(c, "failed to encode document")
		return
	}
	if err := doc.SetSections(result.Sections); err != nil {
		Internal(c, "failed to encode sections")
		return
	}

	if err := h.db.WithContext(ctx).Create(&doc).Error; err != nil {
		logger.Error("create document failed", slog.Any("error", err))
		Internal(c, "failed to create document")
		return
	}

	if err := h.setActiveDocumentID(ctx, userID, &doc.ID); err != nil {
		Internal(c, "failed to mark active document")
		return
	}

	h.enqueuePreview(c, doc.ID, userID, logger)

	logger.Info("document uploaded",
		slog.Uint64("document_id", uint64(doc.ID)),
		slog.Int("pages", result.Document.PageCount()),
		slog.Int("sections", len(result.Sections)),
	)
	c.JSON(http.StatusCreated, newDocumentResponse(doc))
}

var errMaliciousFile = errors.New("malicious file detected")

// scanUpload 通过 clamd 扫描上传内容；未配置扫描器时直接放行。
func (h *DocumentHandler) scanUpload(data []byte) error {
	if strings.TrimSpace(h.clamdAddr) == "" {
		return nil
	}

	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return errMaliciousFile
		}
	}
	return nil
}

func (h *DocumentHandler) enqueuePreview(c *gin.Context, documentID, userID uint, logger *slog.Logger) {
	task, err := tasks.NewPreviewRenderTask(tasks.PreviewRenderPayload{
		DocumentID:    documentID,
		UserID:        userID,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		logger.Warn("build preview task failed", slog.Any("error", err))
		return
	}
	if _, err := h.asynqClient.Enqueue(task, asynq.MaxRetry(2)); err != nil {
		logger.Warn("enqueue preview task failed", slog.Any("error", err))
	}
}

// ListDocuments 列出用户全部文档。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var docs []database.Document
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&docs).Error; err != nil {
		Internal(c, "failed to list documents")
		return
	}

	items := make([]documentListItem, 0, len(docs))
	for _, d := range docs {
		pages := 0
		if doc, err := d.DecodeContent(); err == nil {
			pages = doc.PageCount()
		}
		items = append(items, documentListItem{
			ID:        d.ID,
			Title:     d.Title,
			Status:    d.Status,
			PageCount: pages,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, items)
}

// GetDocument 返回指定文档并标记为当前正在编辑。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
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

	if err := h.setActiveDocumentID(c.Request.Context(), userID, &doc.ID); err != nil {
		Internal(c, "failed to mark active document")
		return
	}

	c.JSON(http.StatusOK, newDocumentResponse(*doc))
}

// GetLatestDocument 返回用户当前活跃或最近更新的文档。
func (h *DocumentHandler) GetLatestDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	doc, err := h.findActiveOrLatestDocument(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "no documents yet")
			return
		}
		Internal(c, "failed to query latest document")
		return
	}

	c.JSON(http.StatusOK, newDocumentResponse(*doc))
}

type renameDocumentRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

// RenameDocument 修改文档标题。
func (h *DocumentHandler) RenameDocument(c *gin.Context) {
	var req renameDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
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

	if err := h.db.WithContext(c.Request.Context()).Model(doc).Update("title", req.Title).Error; err != nil {
		Internal(c, "failed to rename document")
		return
	}
	doc.Title = req.Title

	c.JSON(http.StatusOK, newDocumentResponse(*doc))
}

// DeleteDocument 删除文档及其存储对象，并回落到最近一份。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
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

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Delete(&database.Document{}, doc.ID).Error; err != nil {
		Internal(c, "failed to delete document")
		return
	}

	// 仅删除本文档的对象，避免误删同一用户的其他文档。
	for _, key := range []string{doc.SourceKey, doc.PdfKey, doc.PreviewKey} {
		if strings.TrimSpace(key) != "" {
			if err := h.storage.DeletePrefix(ctx, key); err != nil {
				h.loggerFromContext(c).Warn("delete document object failed",
					slog.String("key", key), slog.Any("error", err))
			}
		}
	}

	if err := h.assignLatestDocumentAsActive(ctx, userID); err != nil {
		Internal(c, "failed to update active document")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetDownloadLink 返回最近生成 PDF 的预签名下载链接。
func (h *DocumentHandler) GetDownloadLink(c *gin.Context) {
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

	if doc.PdfKey == "" {
		Conflict(c, "pdf not ready")
		return
	}

	filename := export.Filename(doc.Title, "")
	signedURL, err := h.storage.GeneratePresignedDownloadURL(c.Request.Context(), doc.PdfKey, filename, 5*time.Minute)
	if err != nil {
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL, "filename": filename})
}

// GetPreviewLink 返回缩略图的预签名链接。
func (h *DocumentHandler) GetPreviewLink(c *gin.Context) {
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

	if doc.PreviewKey == "" {
		Conflict(c, "preview not ready")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), doc.PreviewKey, 10*time.Minute)
	if err != nil {
		Internal(c, "failed to generate preview link")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

func (h *DocumentHandler) setActiveDocumentID(ctx context.Context, userID uint, documentID *uint) error {
	var value any
	if documentID != nil {
		value = *documentID
	}
	return h.db.WithContext(ctx).Model(&database.User{}).
		Where("id = ?", userID).
		Update("active_document_id", value).Error
}

func (h *DocumentHandler) assignLatestDocumentAsActive(ctx context.Context, userID uint) error {
	var doc database.Document
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		First(&doc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return h.setActiveDocumentID(ctx, userID, nil)
	case err != nil:
		return err
	default:
		return h.setActiveDocumentID(ctx, userID, &doc.ID)
	}
}

func (h *DocumentHandler) findActiveOrLatestDocument(ctx context.Context, userID uint) (*database.Document, error) {
	var user database.User
	if err := h.db.WithContext(ctx).
		Select("id", "active_document_id").
		First(&user, userID).Error; err != nil {
		return nil, err
	}

	if user.ActiveDocumentID != nil {
		var doc database.Document
		err := h.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", *user.ActiveDocumentID, userID).
			First(&doc).Error
		if err == nil {
			return &doc, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var latest database.Document
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = h.setActiveDocumentID(ctx, userID, nil)
		}
		return nil, err
	}

	if err := h.setActiveDocumentID(ctx, userID, &latest.ID); err != nil {
		return nil, err
	}
	return &latest, nil
}

func (h *DocumentHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// getDocumentForUser 加载属于该用户的文档。
func getDocumentForUser(ctx context.Context, db *gorm.DB, idParam string, userID uint) (*database.Document, error) {
	documentID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, errInvalidDocumentID
	}

	var doc database.Document
	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", uint(documentID), userID).
		First(&doc).Error; err != nil {
		return nil, err
	}

	return &doc, nil
}

func respondDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidDocumentID):
		BadRequest(c, "invalid document id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "document not found")
	default:
		Internal(c, "failed to query document")
	}
}

func newDocumentResponse(doc database.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		Status:    doc.Status,
		Content:   json.RawMessage(doc.Content),
		Sections:  json.RawMessage(doc.Sections),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
