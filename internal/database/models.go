package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username         string     `gorm:"uniqueIndex;size:64"`
	PasswordHash     string     `gorm:"size:255"`
	ActiveDocumentID *uint      `gorm:"index"`
	Documents        []Document `gorm:"constraint:OnDelete:CASCADE"`
}

// Document 表示一份简历文档：
// Content 存放逐页文本片段与编辑日志，Sections 存放结构化分区模型。
// 两份 JSONB 各自独立演进，覆盖编辑只写 Content，分区编辑只写 Sections。
type Document struct {
	gorm.Model
	Title      string         `gorm:"size:255"`
	Content    datatypes.JSON `gorm:"type:jsonb"`
	Sections   datatypes.JSON `gorm:"type:jsonb"`
	UserID     uint           `gorm:"index"`
	User       User           `gorm:"constraint:OnDelete:CASCADE"`
	SourceKey  string         `gorm:"size:512"` // 上传的原始 PDF 对象键
	PdfKey     string         `gorm:"size:512"` // 最近一次生成/导出的 PDF 对象键
	PreviewKey string         `gorm:"size:512"` // 缩略图对象键
	Status     string         `gorm:"size:32"`
}

// ExportJob 记录一次异步生成或导出任务的生命周期。
// JobID 由入队方生成，进度订阅与取消都以它为键。
type ExportJob struct {
	gorm.Model
	JobID      string `gorm:"uniqueIndex;size:64"`
	DocumentID uint   `gorm:"index"`
	UserID     uint   `gorm:"index"`
	Kind       string `gorm:"size:32"`
	Status     string `gorm:"size:32"`
	ObjectKey  string `gorm:"size:512"`
	PageCount  int
	Error      string `gorm:"size:1024"`
}

// 任务状态常量。
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusDone      = "done"
	JobStatusCancelled = "cancelled"
	JobStatusFailed    = "failed"
)

// 任务种类常量。
const (
	JobKindGenerate = "generate"
	JobKindExport   = "export"
)
