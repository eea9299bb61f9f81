package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"resumePress/internal/section"
)

// SectionHandler 负责分区模型的结构化编辑：
// 排序、可见性、增删分区与条目。所有写操作都会重新归一化 Order。
type SectionHandler struct {
	db *gorm.DB
}

// NewSectionHandler 构造 SectionHandler。
func NewSectionHandler(db *gorm.DB) *SectionHandler {
	return &SectionHandler{db: db}
}

type sectionsResponse struct {
	Sections section.Sections `json:"sections"`
}

// ListSections 返回文档的分区模型。
func (h *SectionHandler) ListSections(c *gin.Context) {
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

	secs, err := model.DecodeSections()
	if err != nil {
		Internal(c, "failed to decode sections")
		return
	}
	if secs == nil {
		secs = section.Sections{}
	}

	c.JSON(http.StatusOK, sectionsResponse{Sections: secs})
}

type addSectionRequest struct {
	Type  section.Type `json:"type" binding:"required"`
	Title string       `json:"title" binding:"required,max=255"`
}

// AddSection 追加一个新分区，排在末尾。
func (h *SectionHandler) AddSection(c *gin.Context) {
	var req addSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !req.Type.Valid() {
		BadRequest(c, fmt.Sprintf("unknown section type %q", req.Type))
		return
	}

	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		secs = append(secs, section.Section{
			ID:      "sec-" + uuid.NewString(),
			Type:    req.Type,
			Title:   req.Title,
			Visible: true,
			Order:   len(secs),
		})
		secs.Normalize()
		return secs, true
	})
}

type reorderRequest struct {
	SectionID string `json:"section_id" binding:"required"`
	Position  int    `json:"position"`
}

// ReorderSection 把分区移动到目标位置，越界位置收敛到边界。
func (h *SectionHandler) ReorderSection(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		if err := secs.Reorder(req.SectionID, req.Position); err != nil {
			h.respondSectionError(c, err)
			return nil, false
		}
		return secs, true
	})
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// SetSectionVisibility 切换分区可见性；隐藏的分区不参与生成。
func (h *SectionHandler) SetSectionVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sectionID := c.Param("sectionID")
	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		if err := secs.SetVisible(sectionID, *req.Visible); err != nil {
			h.respondSectionError(c, err)
			return nil, false
		}
		return secs, true
	})
}

// DeleteSection 删除分区并重排余下分区的 Order。
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	sectionID := c.Param("sectionID")
	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		next, err := secs.Delete(sectionID)
		if err != nil {
			h.respondSectionError(c, err)
			return nil, false
		}
		return next, true
	})
}

type itemRequest struct {
	Text     string `json:"text" binding:"required"`
	IsBullet bool   `json:"is_bullet"`
	Indent   int    `json:"indent"`
}

// AddItem 向分区追加条目。
func (h *SectionHandler) AddItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sectionID := c.Param("sectionID")
	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		item := section.Item{
			ID:       "item-" + uuid.NewString(),
			Text:     req.Text,
			IsBullet: req.IsBullet,
			Indent:   req.Indent,
		}
		if err := secs.AddItem(sectionID, item); err != nil {
			h.respondSectionError(c, err)
			return nil, false
		}
		return secs, true
	})
}

// UpdateItem 覆盖条目内容并标记为已编辑。
func (h *SectionHandler) UpdateItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sectionID := c.Param("sectionID")
	itemID := c.Param("itemID")
	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		if err := secs.UpdateItem(sectionID, itemID, req.Text, req.IsBullet, req.Indent); err != nil {
			h.respondSectionError(c, err)
			return nil, false
		}
		return secs, true
	})
}

// RemoveItem 删除条目。
func (h *SectionHandler) RemoveItem(c *gin.Context) {
	sectionID := c.Param("sectionID")
	itemID := c.Param("itemID")
	h.withSections(c, func(secs section.Sections) (section.Sections, bool) {
		if err := secs.RemoveItem(sectionID, itemID); err != nil {
			h.respondSectionError(c, err)
			return nil, false
		}
		return secs, true
	})
}

// withSections 加载分区模型、执行变更闭包并写回。
func (h *SectionHandler) withSections(c *gin.Context, apply func(secs section.Sections) (section.Sections, bool)) {
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

	secs, err := model.DecodeSections()
	if err != nil {
		Internal(c, "failed to decode sections")
		return
	}

	next, persist := apply(secs)
	if !persist {
		return
	}

	if err := next.Validate(); err != nil {
		Internal(c, "section model invalid after update")
		return
	}

	if err := model.SetSections(next); err != nil {
		Internal(c, "failed to encode sections")
		return
	}
	if err := h.db.WithContext(ctx).Model(model).Update("sections", model.Sections).Error; err != nil {
		Internal(c, "failed to save sections")
		return
	}

	c.JSON(http.StatusOK, sectionsResponse{Sections: next})
}

func (h *SectionHandler) respondSectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, section.ErrSectionNotFound):
		NotFound(c, "section not found")
	case errors.Is(err, section.ErrItemNotFound):
		NotFound(c, "item not found")
	case errors.Is(err, section.ErrInvalidType):
		BadRequest(c, "invalid section type")
	default:
		Internal(c, "section update failed")
	}
}
