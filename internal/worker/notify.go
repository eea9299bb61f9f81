package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type JobNotifyMessage struct {
	Type          string `json:"type"` // progress | complete | error | cancelled
	JobID         string `json:"job_id"`
	DocumentID    uint   `json:"document_id"`
	Progress      int    `json:"progress"`
	Status        string `json:"status,omitempty"`
	ObjectKey     string `json:"object_key,omitempty"`
	PageCount     int    `json:"page_count,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// publishJobNotify 把任务消息推到用户的通知频道。
func publishJobNotify(ctx context.Context, client redis.UniversalClient, userID uint, msg JobNotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
