package document

import (
	"errors"
	"fmt"
)

// TextRun 表示页面上一个带坐标的文本片段（单位：pt，原生 PDF 比例）。
// ID 在同一文档内对渲染出的文本片段保持稳定。
type TextRun struct {
	ID           string  `json:"id"`
	PageIndex    int     `json:"page_index"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Text         string  `json:"text"`
	OriginalText string  `json:"original_text,omitempty"`
	FontFamily   string  `json:"font_family"`
	FontSize     float64 `json:"font_size"`
	FontWeight   string  `json:"font_weight"`
	FontStyle    string  `json:"font_style"`
	Color        string  `json:"color"`
	IsEdited     bool    `json:"is_edited"`
}

// Page 持有一页的尺寸与全部文本片段，归属于 Document。
type Page struct {
	Index    int       `json:"index"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	TextRuns []TextRun `json:"text_runs"`
}

// Document 是文档内存聚合：页面、文本片段与编辑操作日志。
// 所有变更入口都在本包内，外部只通过方法写入。
type Document struct {
	Title string          `json:"title"`
	Pages []Page          `json:"pages"`
	Ops   []EditOperation `json:"ops"`
}

var (
	ErrPageOutOfRange = errors.New("page index out of range")
	ErrRunNotFound    = errors.New("text run not found")
)

// Page 返回指定页；索引越界返回 ErrPageOutOfRange。
func (d *Document) Page(index int) (*Page, error) {
	if index < 0 || index >= len(d.Pages) {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, index)
	}
	return &d.Pages[index], nil
}

// FindRun 在指定页内查找文本片段。
func (d *Document) FindRun(pageIndex int, runID string) (*TextRun, error) {
	page, err := d.Page(pageIndex)
	if err != nil {
		return nil, err
	}
	for i := range page.TextRuns {
		if page.TextRuns[i].ID == runID {
			return &page.TextRuns[i], nil
		}
	}
	return nil, fmt.Errorf("%w: page %d run %q", ErrRunNotFound, pageIndex, runID)
}

// PageCount 返回文档页数。
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// HasContent 判断文档是否已有可导出的内容。
func (d *Document) HasContent() bool {
	return len(d.Pages) > 0
}
