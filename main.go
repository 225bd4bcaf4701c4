package main

import (
	"back/config"
	"back/controllers"
	"back/routes"
	"back/services"
	"log"

	"github.com/gin-gonic/gin"
)

func main() {
	// デバッグモードを有効化
	gin.SetMode(gin.DebugMode)

	store, err := services.NewDynamoStore(config.GetDynamoEndpoint(), config.GetDynamoRegion())
	if err != nil {
		log.Fatalf("Failed to connect to DynamoDB: %v", err)
	}

	index, err := services.NewPgVectorIndex(config.GetPostgresURI(), config.GetEmbeddingDim())
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	openAI := services.NewOpenAIService()
	chatService := services.NewChatService(store, index, openAI, openAI)
	chatController := controllers.NewChatController(chatService, store)

	router := routes.SetupRouter(chatController)

	port := config.GetServerPort()
	log.Printf("Server starting on port %s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
