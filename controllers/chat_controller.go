package controllers

import (
	"net/http"

	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatController struct {
	chat   services.ChatService
	logger *zap.Logger
}

func NewChatController(chat services.ChatService, logger *zap.Logger) *ChatController {
	return &ChatController{chat: chat, logger: logger}
}

func (cc *ChatController) GetMessages(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}
	msgs, appErr := cc.chat.List(ctx.Request.Context(), identity, orderID)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (cc *ChatController) SendMessage(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	msg, appErr := cc.chat.Send(ctx.Request.Context(), identity, orderID, req.Message)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"message": msg})
}
