package export

import (
	"bytes"
	"errors"
	"testing"

	"resumePress/internal/document"
)

func bakeTestDocument() *document.Document {
	return &document.Document{
		Title: "Jane Doe Resume",
		Pages: []document.Page{
			{
				Index: 0, Width: 595, Height: 842,
				TextRuns: []document.TextRun{
					{ID: "r1", X: 36, Y: 40, Width: 200, Height: 14, Text: "Jane Doe",
						FontFamily: "Helvetica", FontSize: 14, FontWeight: "bold", Color: "#102030"},
					{ID: "r2", X: 36, Y: 70, Width: 300, Height: 12, Text: "Senior Engineer",
						FontFamily: "Times New Roman", FontSize: 11, FontWeight: "normal", Color: "#000000"},
				},
			},
			{
				Index: 1, Width: 595, Height: 842,
				TextRuns: []document.TextRun{
					{ID: "r3", X: 36, Y: 40, Width: 300, Height: 12, Text: "Built things",
						FontFamily: "Courier", FontSize: 11, FontStyle: "italic", Color: "#333333"},
				},
			},
		},
	}
}

func TestBakeProducesPDF(t *testing.T) {
	doc := bakeTestDocument()
	if _, err := doc.CommitEdit(0, "r2", document.Edit{NewText: "Staff Engineer"}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	data, err := Bake(doc)
	if err != nil {
		t.Fatalf("bake: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a pdf byte stream")
	}
}

func TestBakeDeterministic(t *testing.T) {
	first, err := Bake(bakeTestDocument())
	if err != nil {
		t.Fatalf("first bake: %v", err)
	}
	second, err := Bake(bakeTestDocument())
	if err != nil {
		t.Fatalf("second bake: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical documents produced different bytes")
	}
}

func TestBakeEmptyDocumentFailsFast(t *testing.T) {
	doc := &document.Document{Title: "empty"}
	if _, err := Bake(doc); !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
}

func TestCoreFontFamily(t *testing.T) {
	cases := map[string]string{
		"Times New Roman": "Times",
		"times-bold":      "Times",
		"Courier New":     "Courier",
		"JetBrains Mono":  "Courier",
		"Helvetica":       "Helvetica",
		"Arial":           "Helvetica",
		"":                "Helvetica",
	}
	for in, want := range cases {
		if got := coreFontFamily(in); got != want {
			t.Errorf("coreFontFamily(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFontStyleString(t *testing.T) {
	if got := fontStyleString("bold", "italic"); got != "BI" {
		t.Errorf("got %q, want BI", got)
	}
	if got := fontStyleString("normal", "normal"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestParseHexColor(t *testing.T) {
	r, g, b := parseHexColor("#102030")
	if r != 0x10 || g != 0x20 || b != 0x30 {
		t.Errorf("got %d,%d,%d", r, g, b)
	}
	r, g, b = parseHexColor("nonsense")
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("invalid color should fall back to black, got %d,%d,%d", r, g, b)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename("Jane Doe Resume", "edited"); got != "Jane Doe Resume-edited.pdf" {
		t.Errorf("got %q", got)
	}
	if got := Filename("a/b:c", ""); got != "a_b_c.pdf" {
		t.Errorf("got %q", got)
	}
	if got := Filename("   ", "export"); got != "resume-export.pdf" {
		t.Errorf("got %q", got)
	}
}
