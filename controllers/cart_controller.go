package controllers

import (
	"net/http"

	"hardline-backend/models"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartController struct {
	carts    services.CartService
	checkout services.CheckoutService
	origins  OriginPolicy
	logger   *zap.Logger
}

func NewCartController(carts services.CartService, checkout services.CheckoutService, origins OriginPolicy, logger *zap.Logger) *CartController {
	return &CartController{carts: carts, checkout: checkout, origins: origins, logger: logger}
}

// GetCart returns the caller's cart with derived totals.
func (cc *CartController) GetCart(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	cart, appErr := cc.carts.GetCart(ctx.Request.Context(), identity.OwnerID())
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, cartResponse(cart))
}

func (cc *CartController) AddItem(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	var item models.CartItem
	if err := ctx.ShouldBindJSON(&item); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	cart, appErr := cc.carts.AddItem(ctx.Request.Context(), identity.OwnerID(), item)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, cartResponse(cart))
}

func (cc *CartController) UpdateQuantity(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	var req struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	cart, appErr := cc.carts.UpdateQuantity(ctx.Request.Context(), identity.OwnerID(), ctx.Param("id"), *req.Quantity)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, cartResponse(cart))
}

func (cc *CartController) RemoveItem(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	cart, appErr := cc.carts.RemoveItem(ctx.Request.Context(), identity.OwnerID(), ctx.Param("id"))
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, cartResponse(cart))
}

func (cc *CartController) ClearCart(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	if appErr := cc.carts.Clear(ctx.Request.Context(), identity.OwnerID()); appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// Checkout starts a hosted payment session for the stored cart. The cart
// is left in place until the success page confirms the purchase.
func (cc *CartController) Checkout(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}

	var body struct {
		UserEmail string          `json:"userEmail"`
		UserInfo  models.UserInfo `json:"userInfo"`
	}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	cart, appErr := cc.carts.GetCart(ctx.Request.Context(), identity.OwnerID())
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}

	req := models.CheckoutRequest{Items: cart.Items, UserEmail: body.UserEmail, UserInfo: body.UserInfo}
	sess, appErr := cc.checkout.CreateSession(ctx.Request.Context(), identity, req, cc.origins.Resolve(ctx))
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, sess)
}

func cartResponse(cart *models.Cart) gin.H {
	return gin.H{
		"owner_id":    cart.OwnerID,
		"items":       cart.Items,
		"total_items": cart.TotalItems(),
		"total_price": cart.TotalPrice(),
		"updated_at":  cart.UpdatedAt,
	}
}
