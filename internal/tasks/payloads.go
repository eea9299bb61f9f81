package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"resumePress/internal/pdfgen"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFGenerate   = "pdf:generate"
	TypePDFExport     = "pdf:export"
	TypePreviewRender = "preview:render"
)

// CancelChannel 是取消请求的 Redis Pub/Sub 频道；消息体为任务 JobID。
const CancelChannel = "pdf_jobs:cancel"

// PDFGeneratePayload 描述一次从分区模型生成 PDF 的任务。
// JobID 由调用方提供，用于进度订阅与协作式取消。
type PDFGeneratePayload struct {
	JobID         string         `json:"job_id"`
	DocumentID    uint           `json:"document_id"`
	UserID        uint           `json:"user_id"`
	Template      string         `json:"template"`
	Options       pdfgen.Options `json:"options"`
	CorrelationID string         `json:"correlation_id"`
}

// PDFExportPayload 描述一次把覆盖编辑烘焙回 PDF 的导出任务。
type PDFExportPayload struct {
	JobID         string `json:"job_id"`
	DocumentID    uint   `json:"document_id"`
	UserID        uint   `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

// PreviewRenderPayload 描述一次文档缩略图渲染任务。
type PreviewRenderPayload struct {
	DocumentID    uint   `json:"document_id"`
	UserID        uint   `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFGenerateTask 构造一个新的 PDF 生成任务。
func NewPDFGenerateTask(p PDFGeneratePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFGenerate, payload), nil
}

// NewPDFExportTask 构造一个新的烘焙导出任务。
func NewPDFExportTask(p PDFExportPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFExport, payload), nil
}

// NewPreviewRenderTask 构造一个新的缩略图渲染任务。
func NewPreviewRenderTask(p PreviewRenderPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePreviewRender, payload), nil
}
