// Package extract 从上传的 PDF 字节中抽取文本片段与尽力而为的分区模型。
package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	pdf "github.com/ledongthuc/pdf"

	"resumePress/internal/document"
	"resumePress/internal/section"
)

const (
	defaultPageWidth  = 595.0
	defaultPageHeight = 842.0
	defaultColor      = "#000000"

	// 同一行判定的基线容差（pt）。
	lineTolerance = 2.0
)

// Result 是一次导入抽取的产物：文本片段文档 + 分区模型。
type Result struct {
	Document *document.Document
	Sections section.Sections
}

// FromPDF 解析 PDF 字节，按页构建文本片段，并推导分区模型。
func FromPDF(data []byte, title string) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc := &document.Document{Title: title}
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		p := reader.Page(pageNum)
		if p.V.IsNull() {
			continue
		}

		width, height := pageSize(p)
		pageIndex := len(doc.Pages)
		runs := groupRuns(p.Content().Text, pageIndex, height)

		doc.Pages = append(doc.Pages, document.Page{
			Index:    pageIndex,
			Width:    width,
			Height:   height,
			TextRuns: runs,
		})
	}

	return &Result{
		Document: doc,
		Sections: buildSections(doc),
	}, nil
}

func pageSize(p pdf.Page) (float64, float64) {
	box := p.V.Key("MediaBox")
	if box.IsNull() || box.Len() < 4 {
		return defaultPageWidth, defaultPageHeight
	}
	width := box.Index(2).Float64() - box.Index(0).Float64()
	height := box.Index(3).Float64() - box.Index(1).Float64()
	if width <= 0 || height <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return width, height
}

// groupRuns 把字符级文本块按基线聚合成行级片段。
// PDF 坐标原点在左下，这里换算为左上原点（片段 Y 为区域顶部）。
func groupRuns(texts []pdf.Text, pageIndex int, pageHeight float64) []document.TextRun {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y // 页面自上而下
		}
		return sorted[i].X < sorted[j].X
	})

	var runs []document.TextRun
	var current *document.TextRun
	var baseline float64

	flush := func() {
		if current != nil && strings.TrimSpace(current.Text) != "" {
			current.Text = strings.TrimRight(current.Text, " ")
			runs = append(runs, *current)
		}
		current = nil
	}

	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		sameLine := current != nil &&
			abs(t.Y-baseline) <= lineTolerance &&
			t.Font == current.FontFamily &&
			t.FontSize == current.FontSize

		if !sameLine {
			flush()
			size := t.FontSize
			if size <= 0 {
				size = 11
			}
			baseline = t.Y
			current = &document.TextRun{
				ID:         fmt.Sprintf("run-%d-%d", pageIndex, len(runs)),
				PageIndex:  pageIndex,
				X:          t.X,
				Y:          pageHeight - t.Y - size,
				Height:     size,
				FontFamily: t.Font,
				FontSize:   size,
				FontWeight: weightFromFontName(t.Font),
				FontStyle:  styleFromFontName(t.Font),
				Color:      defaultColor,
			}
		}
		current.Text += t.S
		if end := t.X + t.W - current.X; end > current.Width {
			current.Width = end
		}
	}
	flush()
	return runs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func weightFromFontName(font string) string {
	if strings.Contains(strings.ToLower(font), "bold") {
		return "bold"
	}
	return "normal"
}

func styleFromFontName(font string) string {
	lower := strings.ToLower(font)
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		return "italic"
	}
	return "normal"
}

// buildSections 对抽取出的行做启发式分区：
// 标题行开启新分区，其余行成为当前分区的条目。
// 首个标题之前的行归入 contact 分区（简历页首通常是联系方式）。
func buildSections(doc *document.Document) section.Sections {
	bodySize := medianFontSize(doc)

	sections := section.Sections{}
	var current *section.Section

	appendCurrent := func() {
		if current != nil {
			sections = append(sections, *current)
		}
		current = nil
	}

	for _, page := range doc.Pages {
		for _, run := range page.TextRuns {
			text := strings.TrimSpace(run.Text)
			if text == "" {
				continue
			}

			if isHeading(text, run.FontSize, bodySize) {
				appendCurrent()
				current = &section.Section{
					ID:      fmt.Sprintf("sec-%d", len(sections)),
					Type:    TypeForHeading(text),
					Title:   titleCase(text),
					Visible: true,
					Order:   len(sections),
				}
				continue
			}

			if current == nil {
				current = &section.Section{
					ID:      fmt.Sprintf("sec-%d", len(sections)),
					Type:    section.TypeContact,
					Title:   "Contact",
					Visible: true,
					Order:   len(sections),
				}
			}

			itemText, isBullet := stripBullet(text)
			current.Items = append(current.Items, section.Item{
				ID:       fmt.Sprintf("%s-item-%d", current.ID, len(current.Items)),
				Text:     itemText,
				IsBullet: isBullet,
			})
		}
	}
	appendCurrent()
	return sections
}

func medianFontSize(doc *document.Document) float64 {
	var sizes []float64
	for _, page := range doc.Pages {
		for _, run := range page.TextRuns {
			if run.FontSize > 0 {
				sizes = append(sizes, run.FontSize)
			}
		}
	}
	if len(sizes) == 0 {
		return 11
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// isHeading 判定一行是否为分区标题：短、字母为主，
// 且要么全大写、要么字号明显大于正文中位数。
func isHeading(text string, fontSize, bodySize float64) bool {
	if len(text) > 40 {
		return false
	}
	if _, bullet := stripBullet(text); bullet {
		return false
	}
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	allUpper := upper == letters && letters >= 3
	larger := bodySize > 0 && fontSize >= bodySize*1.2
	return allUpper || larger
}

// TypeForHeading 把常见简历标题映射到封闭的分区类型枚举。
func TypeForHeading(heading string) section.Type {
	lower := strings.ToLower(heading)
	switch {
	case strings.Contains(lower, "experience"), strings.Contains(lower, "employment"), strings.Contains(lower, "work history"):
		return section.TypeExperience
	case strings.Contains(lower, "education"):
		return section.TypeEducation
	case strings.Contains(lower, "skill"):
		return section.TypeSkills
	case strings.Contains(lower, "project"):
		return section.TypeProjects
	case strings.Contains(lower, "certif"), strings.Contains(lower, "license"):
		return section.TypeCertifications
	case strings.Contains(lower, "summary"), strings.Contains(lower, "profile"), strings.Contains(lower, "objective"):
		return section.TypeSummary
	case strings.Contains(lower, "contact"):
		return section.TypeContact
	default:
		return section.TypeCustom
	}
}

// titleCase 把全大写标题转成每词首字母大写的展示形式。
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func stripBullet(text string) (string, bool) {
	for _, prefix := range []string{"•", "◦", "‣", "-", "*"} {
		if strings.HasPrefix(text, prefix+" ") {
			return strings.TrimSpace(strings.TrimPrefix(text, prefix)), true
		}
	}
	return text, false
}
