package controllers

import (
	"io"
	"net/http"

	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 65536

// EventVerifier checks the Stripe-Signature header and decodes the event.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type WebhookController struct {
	verifier EventVerifier
	webhooks services.WebhookService
	logger   *zap.Logger
}

func NewWebhookController(verifier EventVerifier, webhooks services.WebhookService, logger *zap.Logger) *WebhookController {
	return &WebhookController{verifier: verifier, webhooks: webhooks, logger: logger}
}

// StripeWebhook receives and dispatches Stripe webhook events.
func (wc *WebhookController) StripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		wc.logger.Warn("Failed to read webhook body", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	event, err := wc.verifier.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"))
	if err != nil {
		wc.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	wc.logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	result, appErr := wc.webhooks.HandleEvent(ctx.Request.Context(), event)
	if appErr != nil {
		respondError(ctx, appErr)
		return
	}

	resp := gin.H{"received": true, "outcome": result.Outcome}
	if result.Order != nil {
		resp["order_id"] = result.Order.ID
	}
	ctx.JSON(http.StatusOK, resp)
}
