package services

import (
	"back/models"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessChat_ColdStart(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}
	completer := &fakeCompleter{Reply: "ふわっとした丸ブラシがおすすめです！"}
	chat := NewChatService(store, index, embedder, completer)

	userMsg, assistantMsg, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		UserID:  "user-1",
		Message: "雲を描くのに良いブラシは？",
	})

	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, userMsg.Role)
	assert.Equal(t, models.RoleAssistant, assistantMsg.Role)
	assert.Equal(t, "ふわっとした丸ブラシがおすすめです！", assistantMsg.Content)
	assert.True(t, userMsg.HasEmbedding)
	assert.True(t, assistantMsg.HasEmbedding)

	// 会話IDを指定しなかったのでデフォルトの会話が作られる
	require.Len(t, store.Conversations, 1)
	conversationID := store.Conversations[0].ID
	assert.Equal(t, conversationID, userMsg.ConversationID)

	// 両方のメッセージが保存され、ユーザーのメッセージが先
	messages, err := store.RecentMessages(context.Background(), conversationID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.True(t, messages[0].Timestamp.Before(messages[1].Timestamp))

	// 両方ともインデックスに登録されている
	assert.Len(t, index.Entries, 2)
}

func TestProcessChat_UserMessagePrecedesAssistant(t *testing.T) {
	store := newFakeStore()
	chat := NewChatService(store, &fakeIndex{}, &fakeEmbedder{}, &fakeCompleter{Reply: "了解です"})

	userMsg, assistantMsg, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "続きをやろう",
	})

	require.NoError(t, err)
	assert.True(t, userMsg.Timestamp.Before(assistantMsg.Timestamp))
}

func TestProcessChat_ExistingConversationUsed(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{Reply: "いいですね"}
	chat := NewChatService(store, &fakeIndex{}, &fakeEmbedder{}, completer)

	userMsg, _, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-既存",
		UserID:         "user-1",
		Message:        "こんにちは",
	})

	require.NoError(t, err)
	assert.Equal(t, "conv-既存", userMsg.ConversationID)
	// 新しい会話は作られない
	assert.Empty(t, store.Conversations)
}

func TestProcessChat_EmbeddingOutage(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	embedder := &fakeEmbedder{Err: ErrEmbeddingUnavailable}
	completer := &fakeCompleter{Reply: "それでも答えられますよ"}
	chat := NewChatService(store, index, embedder, completer)

	userMsg, assistantMsg, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "今日は何を練習しよう？",
	})

	// リクエストは成功扱い、メッセージは埋め込み無しで保存される
	require.NoError(t, err)
	assert.False(t, userMsg.HasEmbedding)
	assert.False(t, assistantMsg.HasEmbedding)
	assert.Empty(t, index.Entries)

	messages, err := store.RecentMessages(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestProcessChat_CompletionFailureNoPersistence(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{Err: ErrCompletionUnavailable}
	chat := NewChatService(store, &fakeIndex{}, &fakeEmbedder{}, completer)

	_, _, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "質問です",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompletionUnavailable))
	// 補完が失敗したら何も保存されない
	assert.Empty(t, store.Messages["conv-1"])
}

func TestProcessChat_AppendFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.AppendErr = ErrPersistenceFailure
	chat := NewChatService(store, &fakeIndex{}, &fakeEmbedder{}, &fakeCompleter{Reply: "返信"})

	_, _, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "質問です",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistenceFailure))
}

func TestProcessChat_ImageOnlyMessage(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}
	completer := &fakeCompleter{Reply: "構図が良いですね！"}
	chat := NewChatService(store, index, embedder, completer)

	userMsg, assistantMsg, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		ImageRef:       "https://example.com/sketch.png",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/sketch.png", userMsg.ImageRef)
	// 本文が空のメッセージは埋め込まれない（返信は埋め込まれる）
	assert.False(t, userMsg.HasEmbedding)
	assert.True(t, assistantMsg.HasEmbedding)

	// プロンプトの最後のターンに画像が付いている
	last := completer.LastPrompt.Messages[len(completer.LastPrompt.Messages)-1]
	assert.Equal(t, "https://example.com/sketch.png", last.ImageRef)
}

func TestProcessChat_RoundTripVisibility(t *testing.T) {
	store := newFakeStore()
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}
	completer := &fakeCompleter{Reply: "グリザイユから始めましょう"}
	chat := NewChatService(store, index, embedder, completer)

	userMsg, assistantMsg, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "陰影の練習方法を知りたい",
	})
	require.NoError(t, err)

	// recentで両方取得できる
	messages, err := store.RecentMessages(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, userMsg.ID, messages[0].ID)
	assert.Equal(t, assistantMsg.ID, messages[1].ID)

	// 自分自身の埋め込みに対して類似度1.0で検索にヒットする
	vector, err := embedder.Embed(context.Background(), userMsg.Content)
	require.NoError(t, err)
	memories, err := index.SearchSimilar(context.Background(), "user-1", vector, 5)
	require.NoError(t, err)
	require.NotEmpty(t, memories)
	assert.Equal(t, userMsg.ID, memories[0].Message.ID)
	assert.InDelta(t, 1.0, memories[0].Score, 1e-9)
}

func TestProcessChat_TouchesConversation(t *testing.T) {
	store := newFakeStore()
	chat := NewChatService(store, &fakeIndex{}, &fakeEmbedder{}, &fakeCompleter{Reply: "返信"})

	_, _, err := chat.ProcessChat(context.Background(), models.ChatRequest{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "質問",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1"}, store.Touched)
}
