package layout

import (
	"strings"
	"testing"
)

// fixedMeasure 给每个字符 6pt 的等宽度量。
func fixedMeasure(s string) float64 {
	return float64(len(s)) * 6
}

func TestWrapLinesFitMaxWidth(t *testing.T) {
	text := "designed and shipped a distributed ingestion pipeline handling millions of events daily"
	maxWidth := 120.0 // 20 个字符

	lines := Wrap(text, maxWidth, fixedMeasure)
	if len(lines) == 0 {
		t.Fatal("no lines")
	}
	for _, line := range lines {
		if len(strings.Fields(line)) > 1 && fixedMeasure(line) > maxWidth {
			t.Errorf("line %q measures %.0f > %.0f", line, fixedMeasure(line), maxWidth)
		}
	}

	joined := strings.Join(lines, " ")
	want := strings.Join(strings.Fields(text), " ")
	if joined != want {
		t.Errorf("reconstruction mismatch:\n got %q\nwant %q", joined, want)
	}
}

func TestWrapOverlongWordStandsAlone(t *testing.T) {
	text := "see supercalifragilisticexpialidocious now"
	maxWidth := 60.0 // 10 个字符

	lines := Wrap(text, maxWidth, fixedMeasure)
	found := false
	for _, line := range lines {
		if line == "supercalifragilisticexpialidocious" {
			found = true
		} else if fixedMeasure(line) > maxWidth {
			t.Errorf("non-overlong line %q exceeds max width", line)
		}
	}
	if !found {
		t.Errorf("overlong word not on its own line: %v", lines)
	}
}

func TestWrapSingleShortWord(t *testing.T) {
	lines := Wrap("hello", 600, fixedMeasure)
	if len(lines) != 1 || lines[0] != "hello" {
		t.Errorf("lines = %v", lines)
	}
}

func TestWrapBlankText(t *testing.T) {
	if lines := Wrap("   \t  ", 100, fixedMeasure); lines != nil {
		t.Errorf("blank text produced lines: %v", lines)
	}
}

func TestWrapNormalizesWhitespace(t *testing.T) {
	lines := Wrap("a   b\t c", 600, fixedMeasure)
	if len(lines) != 1 || lines[0] != "a b c" {
		t.Errorf("lines = %v", lines)
	}
}
