package controllers

import (
	"net/http"

	"hardline-backend/models"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderController struct {
	orderService services.OrderService
	logger       *zap.Logger
}

func NewOrderController(orderService services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: orderService, logger: logger}
}

// GetAllOrders returns paginated orders for the console, newest first.
func (oc *OrderController) GetAllOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	status := models.OrderStatus(ctx.Query("status"))

	result, appErr := oc.orderService.ListOrders(ctx.Request.Context(), status, page, limit)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (oc *OrderController) GetOrderDetail(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}
	detail, appErr := oc.orderService.GetOrder(ctx.Request.Context(), id)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, detail)
}

func (oc *OrderController) UpdateOrderStatus(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, appErr := oc.orderService.UpdateStatus(ctx.Request.Context(), identity, id, req.Status)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

func (oc *OrderController) DeleteOrder(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}
	if appErr := oc.orderService.DeleteOrder(ctx.Request.Context(), identity, id); appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// GetOrders returns paginated orders for the authenticated user
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)

	result, appErr := oc.orderService.GetUserOrders(ctx.Request.Context(), identity.UserID, page, limit)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetOrderByID returns a specific order for the authenticated user
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	id, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}
	order, appErr := oc.orderService.GetUserOrder(ctx.Request.Context(), identity, id)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}
