package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-docqa-platform/internal/database"
	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/models"
	"rag-docqa-platform/services"
	"rag-docqa-platform/utils"
)

func SetupChatRoutes(router *gin.Engine, chats database.ChatStore, exporter *services.ExportService) {
	g := router.Group("/chats")

	g.GET("", func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		list, err := chats.ListChats(ctx)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	g.POST("", func(c *gin.Context) {
		var req models.CreateChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		chat, err := chats.CreateChat(ctx, req.Title, req.SessionID)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, chat)
	})

	g.DELETE("/:id", func(c *gin.Context) {
		id, ok := chatID(c)
		if !ok {
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		if err := chats.DeleteChat(ctx, id); err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.DeleteChatResponse{Status: "deleted"})
	})

	g.GET("/:id/messages", func(c *gin.Context) {
		id, ok := chatID(c)
		if !ok {
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		msgs, err := chats.ListMessages(ctx, id)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	})

	g.POST("/:id/messages", func(c *gin.Context) {
		id, ok := chatID(c)
		if !ok {
			return
		}
		var req models.CreateMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		msg, err := chats.AddMessage(ctx, id, req.Sender, req.Text, req.PayloadJSON)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, msg)
	})

	g.GET("/:id/export", func(c *gin.Context) {
		id, ok := chatID(c)
		if !ok {
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		file, err := exporter.ExportChat(ctx, id, c.Query("format"))
		if errors.Is(err, services.ErrUnknownExportFormat) {
			utils.RespondWithBadRequest(c, "format must be xlsx or csv", nil)
			return
		}
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
		c.Data(http.StatusOK, file.ContentType, file.Data)
	})
}

func chatID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithBadRequest(c, "chat id must be an integer", nil)
		return 0, false
	}
	return id, true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrChatNotFound) {
		utils.RespondWithNotFound(c, "Chat not found")
		return
	}
	logger.Error("Chat store error", "path", c.FullPath(), "error", err)
	utils.RespondWithInternalError(c, "Database error", nil)
}
