package section

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Type 是简历分区类型的封闭枚举。
type Type string

const (
	TypeContact        Type = "contact"
	TypeSummary        Type = "summary"
	TypeExperience     Type = "experience"
	TypeEducation      Type = "education"
	TypeSkills         Type = "skills"
	TypeProjects       Type = "projects"
	TypeCertifications Type = "certifications"
	TypeCustom         Type = "custom"
)

// AllTypes 按展示顺序列出全部分区类型，供校验与完整性检查使用。
var AllTypes = []Type{
	TypeContact,
	TypeSummary,
	TypeExperience,
	TypeEducation,
	TypeSkills,
	TypeProjects,
	TypeCertifications,
	TypeCustom,
}

// Valid 判断类型是否属于封闭枚举。
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Item 是分区内的一条文本/列表项。
type Item struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	IsBullet bool   `json:"is_bullet"`
	Indent   int    `json:"indent"`
	IsEdited bool   `json:"is_edited"`
}

// Section 是简历构建器的结构化分区，独立于原始 PDF 文本片段。
type Section struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Title     string `json:"title"`
	Items     []Item `json:"items"`
	Visible   bool   `json:"visible"`
	Collapsed bool   `json:"collapsed"`
	Order     int    `json:"order"`
}

// Sections 是文档持有的分区列表。
// 不变式：Order 在可见+隐藏分区上构成 0..n-1 的稠密排列。
type Sections []Section

var (
	ErrSectionNotFound = errors.New("section not found")
	ErrItemNotFound    = errors.New("section item not found")
	ErrInvalidType     = errors.New("invalid section type")
)

// Normalize 按 Order 稳定排序并重新分配 0..n-1。
// 相等的 Order 属于退化输入，保持原有相对顺序，不报错。
func (s Sections) Normalize() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Order < s[j].Order })
	for i := range s {
		s[i].Order = i
	}
}

// Visible 返回按 Order 升序的可见分区（稳定排序后的副本）。
func (s Sections) Visible() Sections {
	sorted := make(Sections, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	visible := make(Sections, 0, len(sorted))
	for _, sec := range sorted {
		if sec.Visible {
			visible = append(visible, sec)
		}
	}
	return visible
}

func (s Sections) indexOf(id string) int {
	for i := range s {
		if s[i].ID == id {
			return i
		}
	}
	return -1
}

// Find 返回指定分区的指针。
func (s Sections) Find(id string) (*Section, error) {
	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, id)
	}
	return &s[i], nil
}

// Reorder 将指定分区移动到目标位置（0 基），并重建稠密 Order。
// 位置越界会被收拢到边界。
func (s Sections) Reorder(id string, newPos int) error {
	s.Normalize()

	from := s.indexOf(id)
	if from < 0 {
		return fmt.Errorf("%w: %q", ErrSectionNotFound, id)
	}
	if newPos < 0 {
		newPos = 0
	}
	if newPos > len(s)-1 {
		newPos = len(s) - 1
	}
	if newPos == from {
		return nil
	}

	moved := s[from]
	rest := append(append(Sections{}, s[:from]...), s[from+1:]...)
	reordered := append(append(append(Sections{}, rest[:newPos]...), moved), rest[newPos:]...)
	copy(s, reordered)
	for i := range s {
		s[i].Order = i
	}
	return nil
}

// SetVisible 切换分区可见性；分区从不被隐式删除，仅隐藏。
func (s Sections) SetVisible(id string, visible bool) error {
	sec, err := s.Find(id)
	if err != nil {
		return err
	}
	sec.Visible = visible
	return nil
}

// Delete 显式删除分区并重建稠密 Order。
func (s Sections) Delete(id string) (Sections, error) {
	i := s.indexOf(id)
	if i < 0 {
		return s, fmt.Errorf("%w: %q", ErrSectionNotFound, id)
	}
	out := append(s[:i], s[i+1:]...)
	out.Normalize()
	return out, nil
}

// AddItem 在分区末尾追加一条项目。
func (s Sections) AddItem(sectionID string, item Item) error {
	sec, err := s.Find(sectionID)
	if err != nil {
		return err
	}
	sec.Items = append(sec.Items, item)
	return nil
}

// UpdateItem 覆盖指定项目的文本与列表属性，并标记已编辑。
func (s Sections) UpdateItem(sectionID, itemID string, text string, isBullet bool, indent int) error {
	sec, err := s.Find(sectionID)
	if err != nil {
		return err
	}
	for i := range sec.Items {
		if sec.Items[i].ID != itemID {
			continue
		}
		item := &sec.Items[i]
		if item.Text != text || item.IsBullet != isBullet || item.Indent != indent {
			item.IsEdited = true
		}
		item.Text = text
		item.IsBullet = isBullet
		item.Indent = indent
		return nil
	}
	return fmt.Errorf("%w: %q in section %q", ErrItemNotFound, itemID, sectionID)
}

// RemoveItem 删除指定项目。
func (s Sections) RemoveItem(sectionID, itemID string) error {
	sec, err := s.Find(sectionID)
	if err != nil {
		return err
	}
	for i := range sec.Items {
		if sec.Items[i].ID == itemID {
			sec.Items = append(sec.Items[:i], sec.Items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q in section %q", ErrItemNotFound, itemID, sectionID)
}

// Validate 校验分区类型合法且 ID 非空。
func (s Sections) Validate() error {
	for i := range s {
		if strings.TrimSpace(s[i].ID) == "" {
			return fmt.Errorf("section at position %d has empty id", i)
		}
		if !s[i].Type.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidType, s[i].Type)
		}
	}
	return nil
}
