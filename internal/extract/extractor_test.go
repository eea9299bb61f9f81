package extract

import (
	"testing"

	pdf "github.com/ledongthuc/pdf"

	"resumePress/internal/document"
	"resumePress/internal/section"
)

func TestGroupRunsMergesLineFragments(t *testing.T) {
	// 同一基线、同一字体的字符块应聚合为一个行级片段。
	texts := []pdf.Text{
		{Font: "Helvetica", FontSize: 11, X: 36, Y: 800, W: 30, S: "Jane "},
		{Font: "Helvetica", FontSize: 11, X: 66, Y: 800, W: 25, S: "Doe"},
		{Font: "Helvetica-Bold", FontSize: 14, X: 36, Y: 770, W: 80, S: "EXPERIENCE"},
	}

	runs := groupRuns(texts, 0, 842)
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2: %+v", len(runs), runs)
	}

	if runs[0].Text != "Jane Doe" {
		t.Errorf("first run text = %q", runs[0].Text)
	}
	if runs[0].Width < 55 {
		t.Errorf("first run width = %v, want span of both fragments", runs[0].Width)
	}
	if runs[1].Text != "EXPERIENCE" || runs[1].FontWeight != "bold" {
		t.Errorf("second run = %+v", runs[1])
	}
	// 左上原点换算：基线 800、字号 11 → 顶部 842-800-11。
	if got := runs[0].Y; got != 842-800-11 {
		t.Errorf("run y = %v", got)
	}
}

func TestGroupRunsSplitsOnFontChange(t *testing.T) {
	texts := []pdf.Text{
		{Font: "Helvetica", FontSize: 11, X: 36, Y: 700, W: 30, S: "plain "},
		{Font: "Helvetica-Oblique", FontSize: 11, X: 70, Y: 700, W: 30, S: "italic"},
	}

	runs := groupRuns(texts, 0, 842)
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want split on font change", len(runs))
	}
	if runs[1].FontStyle != "italic" {
		t.Errorf("style = %q, want italic", runs[1].FontStyle)
	}
}

func TestIsHeading(t *testing.T) {
	cases := []struct {
		text     string
		fontSize float64
		want     bool
	}{
		{"EXPERIENCE", 11, true},
		{"Education", 14, true}, // 字号明显大于正文
		{"Maintained CI pipelines for three teams", 11, false},
		{"EXPERIENCE AND OTHER THINGS I HAVE DONE OVER THE YEARS", 11, false}, // 过长
		{"• BUILT X", 11, false},
		{"12345", 14, false}, // 无字母
	}
	for _, c := range cases {
		if got := isHeading(c.text, c.fontSize, 11); got != c.want {
			t.Errorf("isHeading(%q, %v) = %v, want %v", c.text, c.fontSize, got, c.want)
		}
	}
}

func TestTypeForHeading(t *testing.T) {
	cases := map[string]section.Type{
		"EXPERIENCE":          section.TypeExperience,
		"Work History":        section.TypeExperience,
		"EDUCATION":           section.TypeEducation,
		"Technical Skills":    section.TypeSkills,
		"PROJECTS":            section.TypeProjects,
		"Certifications":      section.TypeCertifications,
		"Professional Summary": section.TypeSummary,
		"CONTACT":             section.TypeContact,
		"VOLUNTEERING":        section.TypeCustom,
	}
	for heading, want := range cases {
		if got := TypeForHeading(heading); got != want {
			t.Errorf("TypeForHeading(%q) = %q, want %q", heading, got, want)
		}
	}
}

func TestBuildSections(t *testing.T) {
	doc := &document.Document{
		Pages: []document.Page{
			{
				Index: 0, Width: 595, Height: 842,
				TextRuns: []document.TextRun{
					{ID: "r0", Text: "jane@example.com", FontSize: 11},
					{ID: "r1", Text: "EXPERIENCE", FontSize: 14, FontWeight: "bold"},
					{ID: "r2", Text: "• Built data pipelines", FontSize: 11},
					{ID: "r3", Text: "• Led a team of four", FontSize: 11},
					{ID: "r4", Text: "EDUCATION", FontSize: 14, FontWeight: "bold"},
					{ID: "r5", Text: "BSc Computer Science", FontSize: 11},
				},
			},
		},
	}

	sections := buildSections(doc)
	if len(sections) != 3 {
		t.Fatalf("sections = %d, want 3: %+v", len(sections), sections)
	}

	if sections[0].Type != section.TypeContact || len(sections[0].Items) != 1 {
		t.Errorf("leading lines should form contact section: %+v", sections[0])
	}
	if sections[1].Type != section.TypeExperience || sections[1].Title != "Experience" {
		t.Errorf("second section = %+v", sections[1])
	}
	if len(sections[1].Items) != 2 || !sections[1].Items[0].IsBullet {
		t.Errorf("experience items = %+v", sections[1].Items)
	}
	if sections[1].Items[0].Text != "Built data pipelines" {
		t.Errorf("bullet glyph not stripped: %q", sections[1].Items[0].Text)
	}
	if sections[2].Type != section.TypeEducation {
		t.Errorf("third section = %+v", sections[2])
	}

	// 分区 Order 构成稠密排列。
	for i, sec := range sections {
		if sec.Order != i {
			t.Errorf("section %d order = %d", i, sec.Order)
		}
		if !sec.Visible {
			t.Errorf("section %d not visible by default", i)
		}
	}
}

func TestStripBullet(t *testing.T) {
	if text, ok := stripBullet("• item"); !ok || text != "item" {
		t.Errorf("got %q, %v", text, ok)
	}
	if text, ok := stripBullet("- item"); !ok || text != "item" {
		t.Errorf("got %q, %v", text, ok)
	}
	if text, ok := stripBullet("plain"); ok || text != "plain" {
		t.Errorf("got %q, %v", text, ok)
	}
	// 无空格分隔的连字符不视为列表符号。
	if _, ok := stripBullet("-item"); ok {
		t.Error("-item should not be treated as bullet")
	}
}

func TestTitleCase(t *testing.T) {
	if got := titleCase("WORK HISTORY"); got != "Work History" {
		t.Errorf("got %q", got)
	}
}
