// cmd/batch/main.go
package main

import (
	"back/config"
	"back/services"
	"context"
	"log"
	"time"
)

func main() {
	store, err := services.NewDynamoStore(config.GetDynamoEndpoint(), config.GetDynamoRegion())
	if err != nil {
		log.Fatalf("Failed to connect to DynamoDB: %v", err)
	}

	// 数回リトライを試みる
	var index *services.PgVectorIndex
	for i := 0; i < 3; i++ {
		index, err = services.NewPgVectorIndex(config.GetPostgresURI(), config.GetEmbeddingDim())
		if err == nil {
			break
		}
		log.Printf("Attempt %d: Failed to connect to Postgres: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}

	if err != nil {
		log.Fatalf("Failed to connect to Postgres after retries: %v", err)
	}

	processor := services.NewBatchProcessor(store, index, services.NewOpenAIService())

	log.Println("Starting embedding backfill service...")

	// 初回実行
	if err := processor.ProcessPendingEmbeddings(context.Background()); err != nil {
		log.Printf("Error in initial backfill: %v", err)
	}

	// 定期実行の設定
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		log.Println("Starting scheduled embedding backfill...")
		if err := processor.ProcessPendingEmbeddings(context.Background()); err != nil {
			log.Printf("Error backfilling embeddings: %v", err)
		}
		log.Println("Embedding backfill completed")
	}
}
