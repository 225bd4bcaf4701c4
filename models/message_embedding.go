package models

import (
	"time"

	"github.com/lib/pq"
)

// MessageEmbedding はPostgres側に保存する類似検索用のレコード
type MessageEmbedding struct {
    MessageID      string          `json:"message_id"`
    ConversationID string          `json:"conversation_id"`
    UserID         string          `json:"user_id"`
    Role           string          `json:"role"`
    Content        string          `json:"content"`
    Vector         pq.Float64Array `json:"vector"`
    CreatedAt      time.Time       `json:"created_at"`
}
