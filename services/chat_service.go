package services

import (
	"back/models"
	"context"
	"log"
)

// ChatService は1ターン分のパイプライン全体を担当する
// 埋め込み → 類似検索 → 直近取得 → プロンプト組み立て → 補完 → 保存
type ChatService struct {
	store     ConversationStore
	index     VectorIndex
	embedder  Embedder
	completer Completer
	rag       *RAGService
}

func NewChatService(store ConversationStore, index VectorIndex, embedder Embedder, completer Completer) *ChatService {
	return &ChatService{
		store:     store,
		index:     index,
		embedder:  embedder,
		completer: completer,
		rag:       NewRAGService(embedder, index, store),
	}
}

// ProcessChat はユーザーの新しいメッセージを処理して両方のメッセージを返す
// 保存は補完が成功した後にだけ行われる（途中で失敗しても中途半端な状態は残らない）
func (cs *ChatService) ProcessChat(ctx context.Context, req models.ChatRequest) (models.Message, models.Message, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		// 会話IDの指定が無ければ最新の会話を使う（無ければ新規作成）
		conversation, err := cs.store.GetOrCreateDefaultConversation(ctx, req.UserID)
		if err != nil {
			return models.Message{}, models.Message{}, err
		}
		conversationID = conversation.ID
	}

	fused, err := cs.rag.BuildFusedContext(ctx, req.UserID, conversationID, req.Message)
	if err != nil {
		return models.Message{}, models.Message{}, err
	}

	prompt := cs.rag.BuildPrompt(fused, req.Message, req.ImageRef)

	reply, err := cs.completer.Complete(ctx, prompt)
	if err != nil {
		return models.Message{}, models.Message{}, err
	}

	// ユーザーのメッセージを先に確定させる
	// （途中でクラッシュしても対応するユーザーターンの無い返信が残らないように）
	userMsg, err := cs.commitMessage(ctx, conversationID, req.UserID, models.RoleUser, req.Message, req.ImageRef)
	if err != nil {
		return models.Message{}, models.Message{}, err
	}

	assistantMsg, err := cs.commitMessage(ctx, conversationID, req.UserID, models.RoleAssistant, reply, "")
	if err != nil {
		return models.Message{}, models.Message{}, err
	}

	if err := cs.store.TouchConversation(ctx, req.UserID, conversationID); err != nil {
		log.Printf("Failed to touch conversation %s: %v", conversationID, err)
	}

	return userMsg, assistantMsg, nil
}

// commitMessage はメッセージを追記し、可能なら埋め込みも登録する
// 追記の失敗は致命的、埋め込みの失敗はログに残して埋め込み無しで保存する
// （検索での可視性はソフトな性質だが、会話ログの耐久性はそうではない）
func (cs *ChatService) commitMessage(ctx context.Context, conversationID, userID, role, content, imageRef string) (models.Message, error) {
	msg, err := cs.store.AppendMessage(ctx, models.Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		ImageRef:       imageRef,
	})
	if err != nil {
		return models.Message{}, err
	}

	// 本文が空のメッセージは埋め込まない
	if content == "" {
		return msg, nil
	}

	vector, err := cs.embedder.Embed(ctx, content)
	if err != nil {
		log.Printf("Message %s saved without embedding (embed failed): %v", msg.ID, err)
		return msg, nil
	}

	if err := cs.index.IndexMessage(ctx, msg, vector); err != nil {
		log.Printf("Message %s saved without embedding (index failed): %v", msg.ID, err)
		return msg, nil
	}

	if err := cs.store.MarkMessageEmbedded(ctx, conversationID, msg.Timestamp); err != nil {
		log.Printf("Failed to mark message %s embedded: %v", msg.ID, err)
		return msg, nil
	}

	msg.HasEmbedding = true
	return msg, nil
}
