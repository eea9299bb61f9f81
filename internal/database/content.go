package database

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"resumePress/internal/document"
	"resumePress/internal/section"
)

// DecodeContent 把 Content(JSONB) 还原为文本片段文档。
// Title 以数据库列为准，不信任 JSON 内嵌的标题。
func (m *Document) DecodeContent() (*document.Document, error) {
	doc := &document.Document{}
	if len(m.Content) > 0 {
		if err := json.Unmarshal(m.Content, doc); err != nil {
			return nil, fmt.Errorf("decode document content: %w", err)
		}
	}
	doc.Title = m.Title
	return doc, nil
}

// SetContent 序列化文本片段文档并写入 Content(JSONB)。
func (m *Document) SetContent(doc *document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document content: %w", err)
	}
	m.Content = datatypes.JSON(data)
	return nil
}

// DecodeSections 把 Sections(JSONB) 还原为分区模型。
func (m *Document) DecodeSections() (section.Sections, error) {
	var secs section.Sections
	if len(m.Sections) > 0 {
		if err := json.Unmarshal(m.Sections, &secs); err != nil {
			return nil, fmt.Errorf("decode document sections: %w", err)
		}
	}
	return secs, nil
}

// SetSections 序列化分区模型并写入 Sections(JSONB)。
func (m *Document) SetSections(secs section.Sections) error {
	data, err := json.Marshal(secs)
	if err != nil {
		return fmt.Errorf("encode document sections: %w", err)
	}
	m.Sections = datatypes.JSON(data)
	return nil
}
