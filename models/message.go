package models

import (
	"time"
)

// メッセージのロールは user / assistant の2値のみ
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message は会話内の1ターン
// HasEmbedding が false のメッセージは類似検索の対象にならない
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ImageRef       string    `json:"image_ref,omitempty"`
	HasEmbedding   bool      `json:"has_embedding"`
	IsLiked        *bool     `json:"isLiked,omitempty"`
	IsDisliked     *bool     `json:"isDisliked,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
