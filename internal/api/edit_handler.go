package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"resumePress/internal/api/middleware"
	"resumePress/internal/document"
)

// EditHandler 负责覆盖编辑：提交、撤销、批量替换与编辑日志查询。
// 每次请求都走 读取 JSONB -> 内存应用 -> 写回 JSONB 的循环，
// 文档按用户隔离，无跨请求共享状态。
type EditHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewEditHandler 构造 EditHandler。
func NewEditHandler(db *gorm.DB, logger *slog.Logger) *EditHandler {
	return &EditHandler{db: db, logger: logger}
}

type commitEditRequest struct {
	PageIndex int                     `json:"page_index"`
	TextRunID string                  `json:"text_run_id" binding:"required"`
	NewText   *string                 `json:"new_text"`
	Style     *document.StyleSnapshot `json:"style"`
}

type editResponse struct {
	Changed      bool                    `json:"changed"`
	Operation    *document.EditOperation `json:"operation,omitempty"`
	UnsavedCount int                     `json:"unsaved_count"`
}

// CommitEdit 对单个文本片段提交一次编辑。
// 文本与样式都未变化时不产生操作记录。
func (h *EditHandler) CommitEdit(c *gin.Context) {
	var req commitEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	h.withDocument(c, func(doc *document.Document) (any, bool) {
		run, err := doc.FindRun(req.PageIndex, req.TextRunID)
		if err != nil {
			h.respondEditError(c, err)
			return nil, false
		}

		// new_text 缺省表示纯样式编辑，文本保持现值。
		edit := document.Edit{NewText: run.Text, Style: req.Style}
		if req.NewText != nil {
			edit.NewText = *req.NewText
		}

		op, err := doc.CommitEdit(req.PageIndex, req.TextRunID, edit)
		if err != nil {
			h.respondEditError(c, err)
			return nil, false
		}

		return editResponse{
			Changed:      op != nil,
			Operation:    op,
			UnsavedCount: doc.UnsavedCount(),
		}, op != nil
	})
}

// UndoLastEdit 撤销最近一次编辑。
func (h *EditHandler) UndoLastEdit(c *gin.Context) {
	h.withDocument(c, func(doc *document.Document) (any, bool) {
		op, err := doc.UndoLastEdit()
		if err != nil {
			if errors.Is(err, document.ErrNothingToUndo) {
				Conflict(c, "nothing to undo")
			} else {
				h.respondEditError(c, err)
			}
			return nil, false
		}

		return editResponse{
			Changed:      true,
			Operation:    op,
			UnsavedCount: doc.UnsavedCount(),
		}, true
	})
}

type replaceAllRequest struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

type replaceAllResponse struct {
	Replaced     int `json:"replaced"`
	UnsavedCount int `json:"unsaved_count"`
}

// ReplaceAll 在全文档执行区分大小写的字面量替换。
func (h *EditHandler) ReplaceAll(c *gin.Context) {
	var req replaceAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	h.withDocument(c, func(doc *document.Document) (any, bool) {
		replaced, err := doc.ReplaceAll(req.Find, req.Replace)
		if err != nil {
			if errors.Is(err, document.ErrEmptyFind) {
				BadRequest(c, "find text must not be empty")
			} else {
				h.respondEditError(c, err)
			}
			return nil, false
		}

		return replaceAllResponse{
			Replaced:     replaced,
			UnsavedCount: doc.UnsavedCount(),
		}, replaced > 0
	})
}

type editLogResponse struct {
	Operations   []document.EditOperation `json:"operations"`
	UnsavedCount int                      `json:"unsaved_count"`
}

// ListEdits 返回编辑日志与未保存计数。
func (h *EditHandler) ListEdits(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	model, err := getDocumentForUser(c.Request.Context(), h.db, c.Param("id"), userID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	doc, err := model.DecodeContent()
	if err != nil {
		Internal(c, "failed to decode document")
		return
	}

	ops := doc.Ops
	if ops == nil {
		ops = []document.EditOperation{}
	}
	c.JSON(http.StatusOK, editLogResponse{
		Operations:   ops,
		UnsavedCount: doc.UnsavedCount(),
	})
}

// withDocument 加载文档、执行编辑闭包，必要时写回并返回结果。
// 闭包返回 (响应体, 是否需要持久化)；闭包自己负责写错误响应时返回 nil。
func (h *EditHandler) withDocument(c *gin.Context, apply func(doc *document.Document) (any, bool)) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	model, err := getDocumentForUser(ctx, h.db, c.Param("id"), userID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	doc, err := model.DecodeContent()
	if err != nil {
		h.loggerFromContext(c).Error("decode document content failed", slog.Any("error", err))
		Internal(c, "failed to decode document")
		return
	}

	body, dirty := apply(doc)
	if body == nil {
		return
	}

	if dirty {
		if err := model.SetContent(doc); err != nil {
			Internal(c, "failed to encode document")
			return
		}
		if err := h.db.WithContext(ctx).Model(model).Update("content", model.Content).Error; err != nil {
			h.loggerFromContext(c).Error("persist document content failed", slog.Any("error", err))
			Internal(c, "failed to save document")
			return
		}
	}

	c.JSON(http.StatusOK, body)
}

func (h *EditHandler) respondEditError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrPageOutOfRange):
		BadRequest(c, "page index out of range")
	case errors.Is(err, document.ErrRunNotFound):
		NotFound(c, "text run not found")
	default:
		Internal(c, "edit failed")
	}
}

func (h *EditHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
