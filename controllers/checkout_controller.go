package controllers

import (
	"net/http"

	"hardline-backend/models"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutController struct {
	checkout  services.CheckoutService
	reconcile services.ReconcileService
	origins   OriginPolicy
	logger    *zap.Logger
}

func NewCheckoutController(checkout services.CheckoutService, reconcile services.ReconcileService, origins OriginPolicy, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{checkout: checkout, reconcile: reconcile, origins: origins, logger: logger}
}

// CreateSession handles POST /api/checkout/session.
func (cc *CheckoutController) CreateSession(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	sess, appErr := cc.checkout.CreateSession(ctx.Request.Context(), identity, req, cc.origins.Resolve(ctx))
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	ctx.JSON(http.StatusOK, sess)
}

// Success confirms the checkout the buyer was redirected back from.
func (cc *CheckoutController) Success(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}

	result, appErr := cc.reconcile.Reconcile(ctx.Request.Context(), identity, ctx.Query("session_id"))
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}
	if result.State == services.StateError {
		ctx.JSON(http.StatusBadRequest, result)
		return
	}
	ctx.JSON(http.StatusOK, result)
}
