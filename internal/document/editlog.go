package document

import (
	"errors"
	"strings"
)

// StyleSnapshot 是一个文本片段样式字段的完整快照。
// 任意样式字段变化时整体记录，保证撤销可以原样恢复。
type StyleSnapshot struct {
	FontFamily string  `json:"font_family"`
	FontSize   float64 `json:"font_size"`
	FontWeight string  `json:"font_weight"`
	FontStyle  string  `json:"font_style"`
	Color      string  `json:"color"`
}

// EditOperation 是编辑日志中的一条只追加记录。
// OriginalText/OriginalStyle 记录的是本次编辑之前的即时状态；
// 片段自身的 OriginalText 字段只在首次编辑时写入一次，
// 因此日志首条记录即源 PDF 内容的权威依据。
type EditOperation struct {
	PageIndex     int            `json:"page_index"`
	TextRunID     string         `json:"text_run_id"`
	OriginalText  string         `json:"original_text"`
	NewText       string         `json:"new_text"`
	OriginalStyle *StyleSnapshot `json:"original_style,omitempty"`
	NewStyle      *StyleSnapshot `json:"new_style,omitempty"`
}

// Edit 描述一次提交：新文本与可选的样式快照（nil 表示样式不变）。
type Edit struct {
	NewText string
	Style   *StyleSnapshot
}

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrEmptyFind     = errors.New("find text must not be empty")
)

func styleOf(run *TextRun) StyleSnapshot {
	return StyleSnapshot{
		FontFamily: run.FontFamily,
		FontSize:   run.FontSize,
		FontWeight: run.FontWeight,
		FontStyle:  run.FontStyle,
		Color:      run.Color,
	}
}

func applyStyle(run *TextRun, s StyleSnapshot) {
	run.FontFamily = s.FontFamily
	run.FontSize = s.FontSize
	run.FontWeight = s.FontWeight
	run.FontStyle = s.FontStyle
	run.Color = s.Color
}

// CommitEdit 提交一次编辑：更新片段并追加一条日志记录。
// 文本与样式都未变化时不产生记录，返回 (nil, nil)。
// 空文本是允许的，校验（若有）由上层协作方负责。
func (d *Document) CommitEdit(pageIndex int, runID string, edit Edit) (*EditOperation, error) {
	run, err := d.FindRun(pageIndex, runID)
	if err != nil {
		return nil, err
	}

	textChanged := edit.NewText != run.Text
	styleChanged := edit.Style != nil && *edit.Style != styleOf(run)
	if !textChanged && !styleChanged {
		return nil, nil
	}

	op := EditOperation{
		PageIndex:    pageIndex,
		TextRunID:    runID,
		OriginalText: run.Text,
		NewText:      edit.NewText,
	}
	if styleChanged {
		prev := styleOf(run)
		op.OriginalStyle = &prev
		next := *edit.Style
		op.NewStyle = &next
		applyStyle(run, next)
	}

	// OriginalText 只在首次编辑时捕获，之后不再覆盖。
	if !run.IsEdited {
		run.OriginalText = run.Text
	}
	run.Text = edit.NewText
	run.IsEdited = true

	d.Ops = append(d.Ops, op)
	return &op, nil
}

// UndoLastEdit 弹出日志末条并反向应用到对应片段。
// 仅支持单级撤销，不提供重做。
func (d *Document) UndoLastEdit() (*EditOperation, error) {
	if len(d.Ops) == 0 {
		return nil, ErrNothingToUndo
	}

	op := d.Ops[len(d.Ops)-1]
	run, err := d.FindRun(op.PageIndex, op.TextRunID)
	if err != nil {
		return nil, err
	}

	run.Text = op.OriginalText
	if op.OriginalStyle != nil {
		applyStyle(run, *op.OriginalStyle)
	}

	d.Ops = d.Ops[:len(d.Ops)-1]
	return &op, nil
}

// ReplaceAll 在全部页面上做字面（非正则、区分大小写）子串替换。
// 每个发生变化的片段追加一条日志记录，返回变化的片段数。
func (d *Document) ReplaceAll(find, replace string) (int, error) {
	if find == "" {
		return 0, ErrEmptyFind
	}

	changed := 0
	for pi := range d.Pages {
		page := &d.Pages[pi]
		for ri := range page.TextRuns {
			run := &page.TextRuns[ri]
			if !strings.Contains(run.Text, find) {
				continue
			}
			newText := strings.ReplaceAll(run.Text, find, replace)
			if newText == run.Text {
				continue
			}
			if _, err := d.CommitEdit(page.Index, run.ID, Edit{NewText: newText}); err != nil {
				return changed, err
			}
			changed++
		}
	}
	return changed, nil
}

// UnsavedCount 返回未保存变更数，即日志长度。
func (d *Document) UnsavedCount() int {
	return len(d.Ops)
}
