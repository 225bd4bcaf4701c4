package controllers

import (
	"back/models"
	"back/services"
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// パイプライン全体のタイムアウト（補完の待ち時間が支配的）
const chatTimeout = 60 * time.Second

// ChatProcessor はチャット1ターンの処理
type ChatProcessor interface {
	ProcessChat(ctx context.Context, req models.ChatRequest) (models.Message, models.Message, error)
}

type ChatController struct {
	chat  ChatProcessor
	store services.ConversationStore
}

func NewChatController(chat ChatProcessor, store services.ConversationStore) *ChatController {
	return &ChatController{
		chat:  chat,
		store: store,
	}
}

func (cc *ChatController) HandleChat(c *gin.Context) {
	var request models.ChatRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		log.Printf("Error binding JSON: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "user_id is required",
		})
		return
	}

	// 本文も画像も無いメッセージは受け付けない
	if request.Message == "" && request.ImageRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "message or image_ref is required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	userMsg, assistantMsg, err := cc.chat.ProcessChat(ctx, request)
	if err != nil {
		log.Printf("Error processing chat: %v", err)
		// 内部の分類はログ用で、ユーザーには汎用メッセージを返す
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrCompletionUnavailable) || errors.Is(err, services.ErrCompletionRejected) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   "couldn't get a response, please try again",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
		"success":           true,
		"error":             nil,
	})
}

func (cc *ChatController) GetConversations(c *gin.Context) {
	userID := c.Query("userId") // クエリパラメータからuserIdを取得
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conversations, err := cc.store.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (cc *ChatController) GetMessages(c *gin.Context) {
	conversationID := c.Query("conversationId")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
		return
	}

	messages, err := cc.store.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (cc *ChatController) UpdateMessageFlag(c *gin.Context) {
	type RequestBody struct {
		ConversationID string `json:"conversationId" binding:"required"`
		Timestamp      string `json:"timestamp" binding:"required"`
		IsLiked        *bool  `json:"isLiked"`
		IsDisliked     *bool  `json:"isDisliked"`
	}

	var requestBody RequestBody
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := cc.store.UpdateMessageFlag(c.Request.Context(), requestBody.ConversationID, requestBody.Timestamp, requestBody.IsLiked, requestBody.IsDisliked)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update message flag"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message updated successfully"})
}
