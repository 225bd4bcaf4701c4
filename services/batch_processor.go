package services

import (
	"back/models"
	"context"
	"log"
	"time"
)

// PendingMessageSource は埋め込み未登録メッセージの供給元
type PendingMessageSource interface {
	ScanPendingMessages(ctx context.Context) ([]models.Message, error)
	MarkMessageEmbedded(ctx context.Context, conversationID string, timestamp time.Time) error
}

// BatchProcessor は埋め込み未登録のメッセージを拾って再埋め込みする
// 埋め込みプロバイダーの障害中に保存されたメッセージは埋め込み無しで残り
// 類似検索から見えないため、バッチで可視性を回復する
type BatchProcessor struct {
	store    PendingMessageSource
	index    VectorIndex
	embedder Embedder
}

func NewBatchProcessor(store PendingMessageSource, index VectorIndex, embedder Embedder) *BatchProcessor {
	return &BatchProcessor{
		store:    store,
		index:    index,
		embedder: embedder,
	}
}

// ProcessPendingEmbeddings は未埋め込みメッセージの処理メインロジック
func (bp *BatchProcessor) ProcessPendingEmbeddings(ctx context.Context) error {
	messages, err := bp.store.ScanPendingMessages(ctx)
	if err != nil {
		return err
	}

	if len(messages) == 0 {
		log.Println("No pending messages found")
		return nil
	}

	processed := 0
	for _, msg := range messages {
		vector, err := bp.embedder.Embed(ctx, msg.Content)
		if err != nil {
			log.Printf("Error embedding message %s: %v", msg.ID, err)
			continue
		}

		if err := bp.index.IndexMessage(ctx, msg, vector); err != nil {
			log.Printf("Error indexing message %s: %v", msg.ID, err)
			continue
		}

		if err := bp.store.MarkMessageEmbedded(ctx, msg.ConversationID, msg.Timestamp); err != nil {
			log.Printf("Error marking message %s embedded: %v", msg.ID, err)
			continue
		}

		processed++
	}

	log.Printf("Successfully backfilled embeddings for %d of %d messages", processed, len(messages))
	return nil
}
