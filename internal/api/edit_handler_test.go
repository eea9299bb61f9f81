package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"resumePress/internal/database"
	"resumePress/internal/document"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Document{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, userID uint, doc *document.Document) *database.Document {
	t.Helper()
	model := &database.Document{
		Title:  doc.Title,
		UserID: userID,
		Status: "uploaded",
	}
	if err := model.SetContent(doc); err != nil {
		t.Fatalf("encode content: %v", err)
	}
	if err := db.Create(model).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return model
}

func twoRunDocument() *document.Document {
	return &document.Document{
		Title: "简历",
		Pages: []document.Page{
			{
				Index:  0,
				Width:  595,
				Height: 842,
				TextRuns: []document.TextRun{
					{ID: "run-1", PageIndex: 0, X: 36, Y: 60, Text: "Go Developer", FontFamily: "Helvetica", FontSize: 14, FontWeight: "bold", Color: "#000000"},
					{ID: "run-2", PageIndex: 0, X: 36, Y: 90, Text: "Shipped Go services", FontFamily: "Helvetica", FontSize: 11, FontWeight: "normal", Color: "#000000"},
				},
			},
		},
	}
}

func invokeHandler(t *testing.T, handle gin.HandlerFunc, method string, docID uint, body any) *httptest.ResponseRecorder {
	t.Helper()
	return invokeHandlerParams(t, handle, method, docID, body, nil)
}

func reloadContent(t *testing.T, db *gorm.DB, id uint) *document.Document {
	t.Helper()
	var model database.Document
	if err := db.First(&model, id).Error; err != nil {
		t.Fatalf("reload document: %v", err)
	}
	doc, err := model.DecodeContent()
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	return doc
}

func TestCommitEdit_TextChangePersists(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	newText := "Senior Go Developer"
	w := invokeHandler(t, h.CommitEdit, http.MethodPost, model.ID, gin.H{
		"page_index":  0,
		"text_run_id": "run-1",
		"new_text":    newText,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp editResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Changed {
		t.Fatal("expected changed=true")
	}
	if resp.UnsavedCount != 1 {
		t.Fatalf("expected unsaved_count=1 got %d", resp.UnsavedCount)
	}
	if resp.Operation == nil || resp.Operation.OriginalText != "Go Developer" {
		t.Fatalf("unexpected operation: %+v", resp.Operation)
	}

	doc := reloadContent(t, db, model.ID)
	run, err := doc.FindRun(0, "run-1")
	if err != nil {
		t.Fatalf("find run: %v", err)
	}
	if run.Text != newText {
		t.Fatalf("expected text %q got %q", newText, run.Text)
	}
	if run.OriginalText != "Go Developer" || !run.IsEdited {
		t.Fatalf("original text not captured: %+v", run)
	}
}

func TestCommitEdit_NoChangeIsNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.CommitEdit, http.MethodPost, model.ID, gin.H{
		"page_index":  0,
		"text_run_id": "run-1",
		"new_text":    "Go Developer",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp editResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Changed || resp.UnsavedCount != 0 {
		t.Fatalf("expected noop, got %+v", resp)
	}

	doc := reloadContent(t, db, model.ID)
	if doc.UnsavedCount() != 0 {
		t.Fatalf("edit log should stay empty, got %d entries", doc.UnsavedCount())
	}
}

func TestCommitEdit_StyleOnlyKeepsText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.CommitEdit, http.MethodPost, model.ID, gin.H{
		"page_index":  0,
		"text_run_id": "run-1",
		"style": gin.H{
			"font_family": "Helvetica",
			"font_size":   16,
			"font_weight": "bold",
			"font_style":  "",
			"color":       "#000000",
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	doc := reloadContent(t, db, model.ID)
	run, err := doc.FindRun(0, "run-1")
	if err != nil {
		t.Fatalf("find run: %v", err)
	}
	if run.Text != "Go Developer" {
		t.Fatalf("style-only edit must not change text, got %q", run.Text)
	}
	if run.FontSize != 16 {
		t.Fatalf("expected font size 16 got %v", run.FontSize)
	}
}

func TestCommitEdit_UnknownRunReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.CommitEdit, http.MethodPost, model.ID, gin.H{
		"page_index":  0,
		"text_run_id": "run-missing",
		"new_text":    "x",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUndoLastEdit_RestoresPreviousState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	for _, text := range []string{"v1", "v2"} {
		w := invokeHandler(t, h.CommitEdit, http.MethodPost, model.ID, gin.H{
			"page_index":  0,
			"text_run_id": "run-2",
			"new_text":    text,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("commit %q: expected 200 got %d", text, w.Code)
		}
	}

	w := invokeHandler(t, h.UndoLastEdit, http.MethodPost, model.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	doc := reloadContent(t, db, model.ID)
	run, err := doc.FindRun(0, "run-2")
	if err != nil {
		t.Fatalf("find run: %v", err)
	}
	if run.Text != "v1" {
		t.Fatalf("expected undo back to %q got %q", "v1", run.Text)
	}
	if doc.UnsavedCount() != 1 {
		t.Fatalf("expected one remaining op got %d", doc.UnsavedCount())
	}
}

func TestUndoLastEdit_EmptyLogReturns409(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.UndoLastEdit, http.MethodPost, model.ID, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestReplaceAll_CountsChangedRuns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.ReplaceAll, http.MethodPost, model.ID, gin.H{
		"find":    "Go",
		"replace": "Golang",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp replaceAllResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Replaced != 2 {
		t.Fatalf("expected 2 replaced runs got %d", resp.Replaced)
	}
	if resp.UnsavedCount != 2 {
		t.Fatalf("expected unsaved_count=2 got %d", resp.UnsavedCount)
	}

	doc := reloadContent(t, db, model.ID)
	run, _ := doc.FindRun(0, "run-1")
	if run.Text != "Golang Developer" {
		t.Fatalf("unexpected text after replace: %q", run.Text)
	}
}

func TestReplaceAll_EmptyFindReturns400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.ReplaceAll, http.MethodPost, model.ID, gin.H{
		"find":    "",
		"replace": "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestListEdits_ReturnsLogAndCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 1, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.ListEdits, http.MethodGet, model.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp editLogResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Operations == nil || len(resp.Operations) != 0 {
		t.Fatalf("expected empty operations slice, got %+v", resp.Operations)
	}
	if resp.UnsavedCount != 0 {
		t.Fatalf("expected unsaved_count=0 got %d", resp.UnsavedCount)
	}
}

func TestEditHandlers_OtherUsersDocumentIsHidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedDocument(t, db, 2, twoRunDocument())
	h := NewEditHandler(db, nil)

	w := invokeHandler(t, h.ListEdits, http.MethodGet, model.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign document got %d", w.Code)
	}
}
