package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"resumePress/internal/database"
	"resumePress/internal/section"
)

func seedSections(t *testing.T, db *gorm.DB, userID uint, secs section.Sections) *database.Document {
	t.Helper()
	model := &database.Document{
		Title:  "简历",
		UserID: userID,
		Status: "uploaded",
	}
	if err := model.SetSections(secs); err != nil {
		t.Fatalf("encode sections: %v", err)
	}
	if err := db.Create(model).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return model
}

func threeSections() section.Sections {
	return section.Sections{
		{ID: "sec-a", Type: section.TypeSummary, Title: "Summary", Visible: true, Order: 0},
		{
			ID: "sec-b", Type: section.TypeExperience, Title: "Experience", Visible: true, Order: 1,
			Items: []section.Item{
				{ID: "item-1", Text: "Built billing pipeline", IsBullet: true},
			},
		},
		{ID: "sec-c", Type: section.TypeSkills, Title: "Skills", Visible: true, Order: 2},
	}
}

func invokeHandlerParams(t *testing.T, handle gin.HandlerFunc, method string, docID uint, body any, extra gin.Params) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, "/", reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set("userID", uint(1))
	c.Params = append(gin.Params{{Key: "id", Value: strconv.FormatUint(uint64(docID), 10)}}, extra...)

	handle(c)
	return w
}

func decodeSectionsBody(t *testing.T, w *httptest.ResponseRecorder) section.Sections {
	t.Helper()
	var resp sectionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Sections
}

func TestReorderSection_MovesAndRenumbers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.ReorderSection, http.MethodPut, model.ID, gin.H{
		"section_id": "sec-c",
		"position":   0,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	secs := decodeSectionsBody(t, w)
	if secs[0].ID != "sec-c" || secs[0].Order != 0 {
		t.Fatalf("expected sec-c first, got %+v", secs[0])
	}
	for i, sec := range secs {
		if sec.Order != i {
			t.Fatalf("order not dense at %d: %+v", i, sec)
		}
	}
}

func TestReorderSection_OutOfRangePositionClamps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.ReorderSection, http.MethodPut, model.ID, gin.H{
		"section_id": "sec-a",
		"position":   99,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	secs := decodeSectionsBody(t, w)
	if secs[len(secs)-1].ID != "sec-a" {
		t.Fatalf("expected sec-a moved to tail, got %+v", secs)
	}
}

func TestReorderSection_UnknownSectionReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.ReorderSection, http.MethodPut, model.ID, gin.H{
		"section_id": "sec-missing",
		"position":   0,
	}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSetSectionVisibility_HidesWithoutDeleting(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.SetSectionVisibility, http.MethodPut, model.ID, gin.H{
		"visible": false,
	}, gin.Params{{Key: "sectionID", Value: "sec-b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	secs := decodeSectionsBody(t, w)
	if len(secs) != 3 {
		t.Fatalf("hiding must not delete sections, got %d", len(secs))
	}
	hidden, err := secs.Find("sec-b")
	if err != nil {
		t.Fatalf("find section: %v", err)
	}
	if hidden.Visible {
		t.Fatal("expected sec-b hidden")
	}
	if len(secs.Visible()) != 2 {
		t.Fatalf("expected 2 visible sections got %d", len(secs.Visible()))
	}
}

func TestAddSection_AppendsAtTail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.AddSection, http.MethodPost, model.ID, gin.H{
		"type":  "projects",
		"title": "Projects",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	secs := decodeSectionsBody(t, w)
	if len(secs) != 4 {
		t.Fatalf("expected 4 sections got %d", len(secs))
	}
	added := secs[len(secs)-1]
	if added.Type != section.TypeProjects || added.Order != 3 || !added.Visible {
		t.Fatalf("unexpected new section: %+v", added)
	}
	if added.ID == "" {
		t.Fatal("new section must get an id")
	}
}

func TestAddSection_RejectsUnknownType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.AddSection, http.MethodPost, model.ID, gin.H{
		"type":  "hobbies",
		"title": "Hobbies",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteSection_RenumbersRemaining(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.DeleteSection, http.MethodDelete, model.ID, nil,
		gin.Params{{Key: "sectionID", Value: "sec-b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	secs := decodeSectionsBody(t, w)
	if len(secs) != 2 {
		t.Fatalf("expected 2 sections got %d", len(secs))
	}
	if secs[0].ID != "sec-a" || secs[0].Order != 0 || secs[1].ID != "sec-c" || secs[1].Order != 1 {
		t.Fatalf("order not renumbered: %+v", secs)
	}
}

func TestItemLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.AddItem, http.MethodPost, model.ID, gin.H{
		"text":      "Led migration to Kubernetes",
		"is_bullet": true,
	}, gin.Params{{Key: "sectionID", Value: "sec-b"}})
	if w.Code != http.StatusOK {
		t.Fatalf("add item: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	secs := decodeSectionsBody(t, w)
	exp, _ := secs.Find("sec-b")
	if len(exp.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(exp.Items))
	}
	itemID := exp.Items[1].ID

	w = invokeHandlerParams(t, h.UpdateItem, http.MethodPut, model.ID, gin.H{
		"text":      "Led migration to Kubernetes across 3 teams",
		"is_bullet": true,
	}, gin.Params{{Key: "sectionID", Value: "sec-b"}, {Key: "itemID", Value: itemID}})
	if w.Code != http.StatusOK {
		t.Fatalf("update item: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	secs = decodeSectionsBody(t, w)
	exp, _ = secs.Find("sec-b")
	if !exp.Items[1].IsEdited {
		t.Fatal("updated item must be marked edited")
	}

	w = invokeHandlerParams(t, h.RemoveItem, http.MethodDelete, model.ID, nil,
		gin.Params{{Key: "sectionID", Value: "sec-b"}, {Key: "itemID", Value: itemID}})
	if w.Code != http.StatusOK {
		t.Fatalf("remove item: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	secs = decodeSectionsBody(t, w)
	exp, _ = secs.Find("sec-b")
	if len(exp.Items) != 1 {
		t.Fatalf("expected 1 item after remove got %d", len(exp.Items))
	}
}

func TestUpdateItem_UnknownItemReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, threeSections())
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.UpdateItem, http.MethodPut, model.ID, gin.H{
		"text": "x",
	}, gin.Params{{Key: "sectionID", Value: "sec-b"}, {Key: "itemID", Value: "item-missing"}})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestListSections_EmptyModelReturnsEmptySlice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	model := seedSections(t, db, 1, section.Sections{})
	h := NewSectionHandler(db)

	w := invokeHandlerParams(t, h.ListSections, http.MethodGet, model.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	secs := decodeSectionsBody(t, w)
	if secs == nil || len(secs) != 0 {
		t.Fatalf("expected empty slice got %+v", secs)
	}
}
