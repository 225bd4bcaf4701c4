package models

// ChatRequest はチャット1ターンの入力
// ConversationID が空なら最新の会話を使う（無ければ新規作成）
// Message が空の場合は ImageRef が必須（画像のみのメッセージ）
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id" binding:"required"`
	Message        string `json:"message"`
	ImageRef       string `json:"image_ref"`
}
