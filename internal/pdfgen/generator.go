package pdfgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"resumePress/internal/layout"
	"resumePress/internal/section"
)

// ProgressFunc 接收单调不减的百分比与人类可读的状态描述。
// 仅用于展示进度条，不参与控制流。
type ProgressFunc func(percent int, status string)

// ErrCancelled 表示任务在分区循环间被协作式取消。
var ErrCancelled = errors.New("pdf generation cancelled")

// Result 是一次生成的产物。
type Result struct {
	PDF       []byte
	PageCount int
}

// 版面常量：缩进步长、列表项后间隙、分区后间隙、标题下划线偏移。
const (
	indentStep  = 12.0
	itemGap     = 4.0
	sectionGap  = 14.0
	ruleOffset  = 3.0
	ruleGap     = 6.0
	bulletGlyph = "• "
)

// 固定创建时间，使相同输入产生逐字节相同的 PDF。
var fixedCreationDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generate 根据分区模型从零排版一份 PDF。
// 纯函数语义：相同的分区、模板与参数总是得到相同的页数与字节。
// 取消检查发生在分区循环之间，取消延迟以单个分区的处理时间为界。
func Generate(ctx context.Context, sections section.Sections, tpl Template, opts Options, progress ProgressFunc) (*Result, error) {
	style, err := StyleFor(tpl)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	lastPercent := -1
	report := func(percent int, status string) {
		if progress == nil {
			return
		}
		if percent < lastPercent {
			percent = lastPercent
		}
		lastPercent = percent
		progress(percent, status)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	report(0, "preparing layout")

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: opts.PageWidth, Ht: opts.PageHeight},
	})
	pdf.SetCreationDate(fixedCreationDate)
	pdf.SetModificationDate(fixedCreationDate)
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	y := opts.Margin
	bottom := opts.PageHeight - opts.Margin
	headerLine := opts.HeaderSize * opts.LineHeight
	bodyLine := opts.BodySize * opts.LineHeight

	visible := sections.Visible()
	report(10, fmt.Sprintf("laying out %d sections", len(visible)))

	for i, sec := range visible {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		report(10+(80*i)/len(visible), fmt.Sprintf("laying out section %q", sec.Title))

		// 标题放不下时另起新页。
		headerNeeded := headerLine
		if style.TitleRule {
			headerNeeded += ruleGap
		}
		if y+headerNeeded > bottom {
			pdf.AddPage()
			y = opts.Margin
		}

		pdf.SetFont(style.HeaderFont, "B", opts.HeaderSize)
		pdf.SetTextColor(style.HeaderColor.R, style.HeaderColor.G, style.HeaderColor.B)
		baseline := y + opts.HeaderSize
		pdf.Text(opts.Margin, baseline, tr(strings.ToUpper(sec.Title)))
		y = baseline
		if style.TitleRule {
			pdf.SetDrawColor(style.AccentColor.R, style.AccentColor.G, style.AccentColor.B)
			pdf.SetLineWidth(0.5)
			pdf.Line(opts.Margin, y+ruleOffset, opts.PageWidth-opts.Margin, y+ruleOffset)
			y += ruleGap
		}
		y += headerLine - opts.HeaderSize

		pdf.SetFont(style.BodyFont, "", opts.BodySize)
		pdf.SetTextColor(style.BodyColor.R, style.BodyColor.G, style.BodyColor.B)
		bulletWidth := pdf.GetStringWidth(tr(bulletGlyph))

		for _, item := range sec.Items {
			if strings.TrimSpace(item.Text) == "" {
				continue
			}

			indent := opts.Margin + float64(item.Indent)*indentStep
			textX := indent
			if item.IsBullet {
				textX += bulletWidth
			}
			avail := opts.PageWidth - opts.Margin - textX

			measure := func(s string) float64 { return pdf.GetStringWidth(tr(s)) }
			lines := layout.Wrap(item.Text, avail, measure)

			for li, line := range lines {
				// 剩余纵向空间不足时在项目中途分页。
				if y+bodyLine > bottom {
					pdf.AddPage()
					y = opts.Margin
				}
				baseline := y + opts.BodySize
				if li == 0 && item.IsBullet {
					pdf.Text(indent, baseline, tr(bulletGlyph))
				}
				pdf.Text(textX, baseline, tr(line))
				y += bodyLine
			}
			y += itemGap
		}
		y += sectionGap
	}

	report(95, "rendering pdf bytes")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	result := &Result{
		PDF:       buf.Bytes(),
		PageCount: pdf.PageCount(),
	}
	report(100, "done")
	return result, nil
}
