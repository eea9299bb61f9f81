package section

import (
	"errors"
	"testing"
)

func newTestSections() Sections {
	return Sections{
		{ID: "sec-contact", Type: TypeContact, Title: "Contact", Visible: true, Order: 0},
		{ID: "sec-summary", Type: TypeSummary, Title: "Summary", Visible: true, Order: 1},
		{ID: "sec-exp", Type: TypeExperience, Title: "Experience", Visible: true, Order: 2,
			Items: []Item{{ID: "item-1", Text: "Built X", IsBullet: true}}},
		{ID: "sec-skills", Type: TypeSkills, Title: "Skills", Visible: false, Order: 3},
	}
}

func assertDenseOrders(t *testing.T, s Sections) {
	t.Helper()
	seen := make(map[int]bool, len(s))
	for _, sec := range s {
		if sec.Order < 0 || sec.Order >= len(s) {
			t.Fatalf("order %d out of range for %d sections", sec.Order, len(s))
		}
		if seen[sec.Order] {
			t.Fatalf("duplicate order %d", sec.Order)
		}
		seen[sec.Order] = true
	}
}

func idSet(s Sections) map[string]bool {
	ids := make(map[string]bool, len(s))
	for _, sec := range s {
		ids[sec.ID] = true
	}
	return ids
}

func TestReorderKeepsDensePermutation(t *testing.T) {
	s := newTestSections()
	before := idSet(s)

	if err := s.Reorder("sec-exp", 0); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	assertDenseOrders(t, s)
	after := idSet(s)
	if len(after) != len(before) {
		t.Fatalf("id set changed: %v -> %v", before, after)
	}
	for id := range before {
		if !after[id] {
			t.Errorf("id %q lost on reorder", id)
		}
	}

	sec, err := s.Find("sec-exp")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if sec.Order != 0 {
		t.Errorf("moved section order = %d, want 0", sec.Order)
	}
}

func TestReorderClampsTargetPosition(t *testing.T) {
	s := newTestSections()

	if err := s.Reorder("sec-contact", 99); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	assertDenseOrders(t, s)

	sec, _ := s.Find("sec-contact")
	if sec.Order != len(s)-1 {
		t.Errorf("order = %d, want last", sec.Order)
	}
}

func TestReorderUnknownSection(t *testing.T) {
	s := newTestSections()
	if err := s.Reorder("missing", 1); !errors.Is(err, ErrSectionNotFound) {
		t.Errorf("err = %v, want ErrSectionNotFound", err)
	}
}

func TestNormalizeDegenerateEqualOrders(t *testing.T) {
	// Order 相等属于退化输入：保持相对顺序，不报错。
	s := Sections{
		{ID: "a", Type: TypeCustom, Order: 5, Visible: true},
		{ID: "b", Type: TypeCustom, Order: 5, Visible: true},
		{ID: "c", Type: TypeCustom, Order: 1, Visible: true},
	}
	s.Normalize()

	assertDenseOrders(t, s)
	if s[0].ID != "c" || s[1].ID != "a" || s[2].ID != "b" {
		t.Errorf("stable order broken: %s %s %s", s[0].ID, s[1].ID, s[2].ID)
	}
}

func TestVisibleFiltersAndSorts(t *testing.T) {
	s := newTestSections()
	if err := s.SetVisible("sec-summary", false); err != nil {
		t.Fatalf("hide: %v", err)
	}

	visible := s.Visible()
	if len(visible) != 2 {
		t.Fatalf("visible = %d sections, want 2", len(visible))
	}
	if visible[0].ID != "sec-contact" || visible[1].ID != "sec-exp" {
		t.Errorf("visible order: %s, %s", visible[0].ID, visible[1].ID)
	}
}

func TestDeleteReassignsOrders(t *testing.T) {
	s := newTestSections()

	out, err := s.Delete("sec-summary")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	assertDenseOrders(t, out)
	if _, err := out.Find("sec-summary"); !errors.Is(err, ErrSectionNotFound) {
		t.Error("deleted section still present")
	}
}

func TestItemCRUD(t *testing.T) {
	s := newTestSections()

	if err := s.AddItem("sec-exp", Item{ID: "item-2", Text: "Shipped Y", IsBullet: true}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.UpdateItem("sec-exp", "item-2", "Shipped Y to prod", true, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	sec, _ := s.Find("sec-exp")
	if len(sec.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(sec.Items))
	}
	if !sec.Items[1].IsEdited || sec.Items[1].Indent != 1 {
		t.Errorf("update not applied: %+v", sec.Items[1])
	}

	if err := s.RemoveItem("sec-exp", "item-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	sec, _ = s.Find("sec-exp")
	if len(sec.Items) != 1 || sec.Items[0].ID != "item-2" {
		t.Errorf("remove left %+v", sec.Items)
	}

	if err := s.RemoveItem("sec-exp", "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	s := Sections{{ID: "x", Type: Type("hobby")}}
	if err := s.Validate(); !errors.Is(err, ErrInvalidType) {
		t.Errorf("err = %v, want ErrInvalidType", err)
	}
}
