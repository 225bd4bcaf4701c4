package services

import (
	"back/models"
	"context"
	"time"
)

// 外部コラボレーターの契約
// コアロジックは具体的なDBクライアントに依存せず、テストではインメモリのフェイクを注入する

// Embedder はテキストを固定長のベクトルに変換する
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Completer は組み立て済みプロンプトから応答テキストを生成する
type Completer interface {
	Complete(ctx context.Context, prompt models.PromptRequest) (string, error)
}

// ConversationStore は会話スレッドと追記専用のメッセージログ
type ConversationStore interface {
	GetOrCreateDefaultConversation(ctx context.Context, userID string) (models.Conversation, error)
	AppendMessage(ctx context.Context, msg models.Message) (models.Message, error)
	RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	TouchConversation(ctx context.Context, userID string, conversationID string) error
	MarkMessageEmbedded(ctx context.Context, conversationID string, timestamp time.Time) error
	UpdateMessageFlag(ctx context.Context, conversationID string, timestamp string, isLiked, isDisliked *bool) error
}

// VectorIndex はオーナー単位の類似検索インデックス
// ベクトルが登録されていないメッセージは検索結果に現れない
type VectorIndex interface {
	IndexMessage(ctx context.Context, msg models.Message, vector []float64) error
	SearchSimilar(ctx context.Context, userID string, vector []float64, limit int) ([]models.RetrievedMemory, error)
}
