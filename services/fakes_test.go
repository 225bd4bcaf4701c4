package services

import (
	"back/models"
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// テスト用のインメモリフェイク群
// 本物のDynamoDB/Postgres/OpenAIの代わりにインターフェースを実装する

type fakeEmbedder struct {
	Err   error
	Calls []string
}

// Embed はテキストから決定的なベクトルを作る（同じテキストなら同じベクトル）
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.Calls = append(f.Calls, text)
	if f.Err != nil {
		return nil, f.Err
	}
	vector := make([]float64, 4)
	for i, r := range text {
		vector[i%4] += float64(r)
	}
	return vector, nil
}

type fakeCompleter struct {
	Reply      string
	Err        error
	LastPrompt models.PromptRequest
	Calls      int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt models.PromptRequest) (string, error) {
	f.Calls++
	f.LastPrompt = prompt
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

type indexedEntry struct {
	Message models.Message
	Vector  []float64
}

type fakeIndex struct {
	Entries     []indexedEntry
	Results     []models.RetrievedMemory // 設定されていればSearchSimilarはこれをそのまま返す
	SearchErr   error
	IndexErr    error
	SearchCalls int
}

func (f *fakeIndex) IndexMessage(ctx context.Context, msg models.Message, vector []float64) error {
	if f.IndexErr != nil {
		return f.IndexErr
	}
	f.Entries = append(f.Entries, indexedEntry{Message: msg, Vector: vector})
	return nil
}

func (f *fakeIndex) SearchSimilar(ctx context.Context, userID string, vector []float64, limit int) ([]models.RetrievedMemory, error) {
	f.SearchCalls++
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	if f.Results != nil {
		if len(f.Results) > limit {
			return f.Results[:limit], nil
		}
		return f.Results, nil
	}

	var memories []models.RetrievedMemory
	for _, entry := range f.Entries {
		if entry.Message.UserID != userID {
			continue
		}
		mem := models.RetrievedMemory{Message: entry.Message, Score: cosine(vector, entry.Vector)}
		mem.Message.HasEmbedding = true
		memories = append(memories, mem)
	}
	sort.Slice(memories, func(i, j int) bool {
		if memories[i].Score != memories[j].Score {
			return memories[i].Score > memories[j].Score
		}
		return memories[i].Message.Timestamp.After(memories[j].Message.Timestamp)
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type fakeStore struct {
	Conversations []models.Conversation
	Messages      map[string][]models.Message

	AppendErr error
	RecentErr error
	CreateErr error

	nextID  int
	clock   time.Time
	Touched []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Messages: make(map[string][]models.Message),
		clock:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) GetOrCreateDefaultConversation(ctx context.Context, userID string) (models.Conversation, error) {
	if f.CreateErr != nil {
		return models.Conversation{}, f.CreateErr
	}
	var latest *models.Conversation
	for i := range f.Conversations {
		conv := &f.Conversations[i]
		if conv.UserID != userID {
			continue
		}
		if latest == nil || conv.UpdatedAt.After(latest.UpdatedAt) {
			latest = conv
		}
	}
	if latest != nil {
		return *latest, nil
	}

	now := f.tick()
	f.nextID++
	conversation := models.Conversation{
		ID:        fmt.Sprintf("conv-%d", f.nextID),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.Conversations = append(f.Conversations, conversation)
	return conversation, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if f.AppendErr != nil {
		return models.Message{}, f.AppendErr
	}
	f.nextID++
	msg.ID = fmt.Sprintf("msg-%d", f.nextID)
	msg.Timestamp = f.tick()
	f.Messages[msg.ConversationID] = append(f.Messages[msg.ConversationID], msg)
	return msg, nil
}

func (f *fakeStore) RecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	if f.RecentErr != nil {
		return nil, f.RecentErr
	}
	messages := f.Messages[conversationID]
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	result := make([]models.Message, len(messages))
	copy(result, messages)
	return result, nil
}

func (f *fakeStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	for _, conv := range f.Conversations {
		if conv.UserID == userID {
			conversations = append(conversations, conv)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	result := make([]models.Message, len(f.Messages[conversationID]))
	copy(result, f.Messages[conversationID])
	return result, nil
}

func (f *fakeStore) TouchConversation(ctx context.Context, userID string, conversationID string) error {
	f.Touched = append(f.Touched, conversationID)
	for i := range f.Conversations {
		if f.Conversations[i].ID == conversationID {
			f.Conversations[i].UpdatedAt = f.tick()
		}
	}
	return nil
}

func (f *fakeStore) MarkMessageEmbedded(ctx context.Context, conversationID string, timestamp time.Time) error {
	for i, msg := range f.Messages[conversationID] {
		if msg.Timestamp.Equal(timestamp) {
			f.Messages[conversationID][i].HasEmbedding = true
		}
	}
	return nil
}

func (f *fakeStore) ScanPendingMessages(ctx context.Context) ([]models.Message, error) {
	var pending []models.Message
	for _, messages := range f.Messages {
		for _, msg := range messages {
			if !msg.HasEmbedding && msg.Content != "" {
				pending = append(pending, msg)
			}
		}
	}
	return pending, nil
}

func (f *fakeStore) UpdateMessageFlag(ctx context.Context, conversationID string, timestamp string, isLiked, isDisliked *bool) error {
	for i, msg := range f.Messages[conversationID] {
		if msg.Timestamp.Format(time.RFC3339Nano) == timestamp {
			if isLiked != nil {
				f.Messages[conversationID][i].IsLiked = isLiked
			}
			if isDisliked != nil {
				f.Messages[conversationID][i].IsDisliked = isDisliked
			}
		}
	}
	return nil
}
