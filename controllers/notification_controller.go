package controllers

import (
	"net/http"

	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationController struct {
	notificationService services.NotificationService
	logger              *zap.Logger
}

func NewNotificationController(svc services.NotificationService, logger *zap.Logger) *NotificationController {
	return &NotificationController{notificationService: svc, logger: logger}
}

func (nc *NotificationController) GetNotifications(ctx *gin.Context) {
	nc.list(ctx, false)
}

// GetBroadcastNotifications lists the staff-facing notifications.
func (nc *NotificationController) GetBroadcastNotifications(ctx *gin.Context) {
	nc.list(ctx, true)
}

func (nc *NotificationController) list(ctx *gin.Context, broadcast bool) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)
	unread := ctx.Query("unread") == "true"

	result, appErr := nc.notificationService.List(ctx.Request.Context(), identity, broadcast, unread, page, limit)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (nc *NotificationController) MarkRead(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id", "notification")
	if !ok {
		return
	}
	if appErr := nc.notificationService.MarkRead(ctx.Request.Context(), identity, id); appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (nc *NotificationController) DeleteNotification(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id", "notification")
	if !ok {
		return
	}
	if appErr := nc.notificationService.Delete(ctx.Request.Context(), identity, id); appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
