package services

import (
	"back/models"
	"context"
	"log"
)

const (
	// 長期記憶：類似検索で拾う件数
	longTermTopK = 5
	// 短期記憶：アクティブな会話から取る直近件数
	shortTermLimit = 6
	// プロンプトに載せる過去ターンの上限（超過分は類似度の低い長期記憶から削る）
	maxContextTurns = longTermTopK + shortTermLimit
)

// チューターの人格と、想起コンテキストの使い方の指示
const systemPersona = "あなたは絵を学ぶユーザーをあたたかく励ますアートチューターです。" +
	"「過去の会話から想起された関連するやり取り」は別の会話から思い出した長期記憶、" +
	"「現在の会話の直近のやり取り」は今の会話の流れです。" +
	"両方を参考にしつつ、直近の流れを優先して、具体的で前向きなアドバイスをしてください。"

// RAGService は長期記憶（類似検索）と短期記憶（直近の会話）を統合して
// プロンプトを組み立てる
type RAGService struct {
	embedder Embedder
	index    VectorIndex
	store    ConversationStore
}

func NewRAGService(embedder Embedder, index VectorIndex, store ConversationStore) *RAGService {
	return &RAGService{
		embedder: embedder,
		index:    index,
		store:    store,
	}
}

// BuildFusedContext は1リクエスト分の記憶コンテキストを構築する
// 短期記憶の取得失敗は致命的、長期記憶まわりの失敗は空の長期記憶に縮退する
func (rs *RAGService) BuildFusedContext(ctx context.Context, userID string, conversationID string, queryText string) (models.FusedContext, error) {
	fused := models.FusedContext{}

	shortTerm, err := rs.store.RecentMessages(ctx, conversationID, shortTermLimit)
	if err != nil {
		// 直近の文脈なしでは会話が成立しないので伝播させる
		return fused, err
	}
	fused.ShortTerm = shortTerm

	// 画像のみのメッセージ（本文が空）は空文字列を埋め込まず、短期記憶だけで進む
	if queryText == "" {
		return fused, nil
	}

	queryVector, err := rs.embedder.Embed(ctx, queryText)
	if err != nil {
		log.Printf("Long-term memory skipped (embedding failed): %v", err)
		return fused, nil
	}

	longTerm, err := rs.index.SearchSimilar(ctx, userID, queryVector, longTermTopK)
	if err != nil {
		log.Printf("Long-term memory skipped (similarity search failed): %v", err)
		return fused, nil
	}

	// 短期記憶にも含まれるメッセージは短期記憶側だけに残す
	seen := make(map[string]bool, len(shortTerm))
	for _, msg := range shortTerm {
		seen[msg.ID] = true
	}
	for _, mem := range longTerm {
		if seen[mem.Message.ID] {
			continue
		}
		fused.LongTermOnly = append(fused.LongTermOnly, mem)
	}

	return fused, nil
}

// BuildPrompt は統合コンテキストと新しいメッセージからプロンプトを組み立てる
// 過去ターンは要約や切り詰めをせず、ロールをそのまま保持する
func (rs *RAGService) BuildPrompt(fused models.FusedContext, queryText string, imageRef string) models.PromptRequest {
	longTerm := fused.LongTermOnly

	// 上限を超えたら類似度の低い長期記憶から削る（短期記憶は絶対に削らない）
	if over := len(longTerm) + len(fused.ShortTerm) - maxContextTurns; over > 0 {
		if over >= len(longTerm) {
			longTerm = nil
		} else {
			// SearchSimilarが類似度の降順で返すので末尾が最も低い
			longTerm = longTerm[:len(longTerm)-over]
		}
	}

	messages := []models.PromptMessage{
		{Role: "system", Content: systemPersona},
	}

	if len(longTerm) > 0 {
		messages = append(messages, models.PromptMessage{
			Role:    "system",
			Content: "以下は過去の会話から想起された関連するやり取りです：",
		})
		for _, mem := range longTerm {
			messages = append(messages, models.PromptMessage{
				Role:    mem.Message.Role,
				Content: mem.Message.Content,
			})
		}
	}

	if len(fused.ShortTerm) > 0 {
		messages = append(messages, models.PromptMessage{
			Role:    "system",
			Content: "ここからは現在の会話の直近のやり取りです：",
		})
		for _, msg := range fused.ShortTerm {
			messages = append(messages, models.PromptMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	messages = append(messages, models.PromptMessage{
		Role:     models.RoleUser,
		Content:  queryText,
		ImageRef: imageRef,
	})

	return models.PromptRequest{Messages: messages}
}
