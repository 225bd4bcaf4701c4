package routes

import (
    "back/controllers"
    "back/middlewares"

    "github.com/gin-gonic/gin"
)

func SetupRouter(chatController *controllers.ChatController) *gin.Engine {
    r := gin.Default()

    r.Use(middlewares.CORS())
    r.Use(middlewares.Logger())

    // チャットメッセージ送信
    r.POST("/chat", chatController.HandleChat)

    // メッセージのフラグ更新
    r.POST("/chat/update-flag", chatController.UpdateMessageFlag)

    // 会話スレッド一覧を取得
    r.GET("/chat/conversations", chatController.GetConversations)

    // 会話内のメッセージを取得
    r.GET("/chat/messages", chatController.GetMessages)

    return r
}
