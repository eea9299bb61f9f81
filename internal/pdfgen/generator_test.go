package pdfgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"resumePress/internal/section"
)

func experienceSections() section.Sections {
	return section.Sections{
		{
			ID: "sec-exp", Type: section.TypeExperience, Title: "Experience",
			Visible: true, Order: 0,
			Items: []section.Item{{ID: "item-1", Text: "Built X", IsBullet: true}},
		},
	}
}

func manySections(n, itemsPer int) section.Sections {
	sections := make(section.Sections, 0, n)
	for i := 0; i < n; i++ {
		sec := section.Section{
			ID:      fmt.Sprintf("sec-%d", i),
			Type:    section.TypeCustom,
			Title:   fmt.Sprintf("Section %d", i),
			Visible: true,
			Order:   i,
		}
		for j := 0; j < itemsPer; j++ {
			sec.Items = append(sec.Items, section.Item{
				ID:       fmt.Sprintf("item-%d-%d", i, j),
				Text:     strings.Repeat("worked on distributed systems and shipped features ", 4),
				IsBullet: true,
			})
		}
		sections = append(sections, sec)
	}
	return sections
}

func TestGenerateSingleSectionOnePage(t *testing.T) {
	result, err := Generate(context.Background(), experienceSections(), TemplateClassic, Options{}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.PageCount != 1 {
		t.Errorf("page count = %d, want 1", result.PageCount)
	}
	if !bytes.HasPrefix(result.PDF, []byte("%PDF")) {
		t.Error("output is not a pdf byte stream")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	sections := manySections(6, 8)

	first, err := Generate(context.Background(), sections, TemplateModern, Options{}, nil)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := Generate(context.Background(), sections, TemplateModern, Options{}, nil)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}

	if first.PageCount != second.PageCount {
		t.Errorf("page counts differ: %d vs %d", first.PageCount, second.PageCount)
	}
	if !bytes.Equal(first.PDF, second.PDF) {
		t.Error("identical inputs produced different bytes")
	}
	if first.PageCount < 2 {
		t.Errorf("expected pagination, got %d page(s)", first.PageCount)
	}
}

func TestGenerateEmptyDocumentFallback(t *testing.T) {
	hidden := section.Sections{
		{ID: "sec-1", Type: section.TypeSummary, Title: "Summary", Visible: false, Order: 0},
	}

	result, err := Generate(context.Background(), hidden, TemplateClassic, Options{}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.PageCount != 1 {
		t.Errorf("page count = %d, want exactly one blank page", result.PageCount)
	}
	if !bytes.HasPrefix(result.PDF, []byte("%PDF")) {
		t.Error("output is not a pdf byte stream")
	}
}

func TestGenerateUnknownTemplate(t *testing.T) {
	if _, err := Generate(context.Background(), experienceSections(), Template("fancy"), Options{}, nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestGenerateProgressMonotone(t *testing.T) {
	var percents []int
	progress := func(p int, _ string) { percents = append(percents, p) }

	if _, err := Generate(context.Background(), manySections(5, 2), TemplateClassic, Options{}, progress); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	if percents[0] != 0 || percents[len(percents)-1] != 100 {
		t.Errorf("progress range %d..%d, want 0..100", percents[0], percents[len(percents)-1])
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress not monotone: %v", percents)
		}
	}
}

func TestGenerateCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Generate(ctx, experienceSections(), TemplateClassic, Options{}, nil); !errors.Is(err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestGenerateCancelledBetweenSections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	progress := func(_ int, status string) {
		// 第一个分区开始排版后触发取消，下一次分区间检查应命中。
		if strings.Contains(status, `"Section 0"`) {
			cancel()
		}
	}

	result, err := Generate(ctx, manySections(4, 2), TemplateClassic, Options{}, progress)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if result != nil {
		t.Error("cancelled generation must not return a partial result")
	}
}

func TestStyleTableCoversAllTemplates(t *testing.T) {
	for _, tpl := range AllTemplates {
		if _, err := StyleFor(tpl); err != nil {
			t.Errorf("template %q has no style: %v", tpl, err)
		}
	}
	if _, err := StyleFor(Template("fancy")); err == nil {
		t.Error("unknown template must be rejected")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.PageWidth != 595 || o.PageHeight != 842 {
		t.Errorf("page size = %vx%v, want A4 in pt", o.PageWidth, o.PageHeight)
	}
	if o.Margin != 36 || o.BodySize != 11 || o.HeaderSize != 14 || o.LineHeight != 1.4 {
		t.Errorf("defaults = %+v", o)
	}

	o = Options{BodySize: 9}.withDefaults()
	if o.BodySize != 9 || o.HeaderSize != 14 {
		t.Errorf("override lost: %+v", o)
	}
}
