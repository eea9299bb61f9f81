// Package export 把覆盖编辑烘焙为可下载的 PDF。
// 文本片段模型是覆盖编辑器的事实依据，因此这里按记录的坐标整页重绘，
// 而不是对源文件做字节级修补（上游的占位实现被有意替换，见 DESIGN.md）。
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"resumePress/internal/document"
)

// ErrNoContent 表示文档还没有可导出的页面内容。
var ErrNoContent = errors.New("document has no content to export")

// 片段未携带字号时使用的兜底值。
const defaultFontSize = 11.0

// Bake 将文档的全部文本片段（含已提交的编辑）重绘为一份新的 PDF。
// 每页使用其记录的尺寸；片段按记录坐标绘制，已编辑片段携带新文本与样式。
func Bake(doc *document.Document) ([]byte, error) {
	if !doc.HasContent() {
		return nil, ErrNoContent
	}

	first := doc.Pages[0]
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: first.Width, Ht: first.Height},
	})
	pdf.SetCreationDate(fixedCreationDate())
	pdf.SetModificationDate(fixedCreationDate())
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: page.Width, Ht: page.Height})

		for _, run := range page.TextRuns {
			if run.Text == "" {
				continue
			}

			size := run.FontSize
			if size <= 0 {
				size = defaultFontSize
			}
			pdf.SetFont(coreFontFamily(run.FontFamily), fontStyleString(run.FontWeight, run.FontStyle), size)

			r, g, b := parseHexColor(run.Color)
			pdf.SetTextColor(r, g, b)

			// 片段坐标记录的是区域左上角，基线下移一个字号。
			pdf.Text(run.X, run.Y+size, tr(run.Text))
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render baked pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// coreFontFamily 把任意来源字体名收敛到 PDF 核心字体族。
func coreFontFamily(family string) string {
	lower := strings.ToLower(family)
	switch {
	case strings.Contains(lower, "times"), strings.Contains(lower, "serif") && !strings.Contains(lower, "sans"):
		return "Times"
	case strings.Contains(lower, "courier"), strings.Contains(lower, "mono"):
		return "Courier"
	default:
		return "Helvetica"
	}
}

func fontStyleString(weight, style string) string {
	s := ""
	if strings.EqualFold(weight, "bold") {
		s += "B"
	}
	if strings.EqualFold(style, "italic") || strings.EqualFold(style, "oblique") {
		s += "I"
	}
	return s
}

// parseHexColor 解析 "#rrggbb"；无法解析时退回黑色。
func parseHexColor(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(value >> 16 & 0xff), int(value >> 8 & 0xff), int(value & 0xff)
}
