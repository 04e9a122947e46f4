package services

import (
	"context"
	"errors"
	"strings"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	awspkg "hardline-backend/pkg/aws"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// CheckoutService creates hosted payment sessions. Nothing is written
// locally; the order appears only once the payment webhook arrives.
type CheckoutService interface {
	CreateSession(ctx context.Context, identity models.Identity, req models.CheckoutRequest, origin string) (*models.CheckoutSession, *apperrors.Error)
}

type checkoutServiceImpl struct {
	provider CheckoutProvider
	currency string
	metrics  *awspkg.MetricsClient
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCheckoutService(provider CheckoutProvider, currency string, metrics *awspkg.MetricsClient, logger *zap.Logger) CheckoutService {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &checkoutServiceImpl{
		provider: provider,
		currency: currency,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *checkoutServiceImpl) CreateSession(ctx context.Context, identity models.Identity, req models.CheckoutRequest, origin string) (*models.CheckoutSession, *apperrors.Error) {
	if len(req.Items) == 0 {
		return nil, apperrors.BadRequest("No items in cart")
	}
	for _, item := range req.Items {
		if appErr := ValidateCartItem(s.validate, item); appErr != nil {
			return nil, appErr
		}
	}

	email := identity.Email
	if email == "" {
		email = strings.TrimSpace(req.UserEmail)
	}

	metadata, err := EncodeSessionMetadata(identity, email, req.UserInfo, req.Items)
	if err != nil {
		if errors.Is(err, ErrMetadataTooLarge) {
			return nil, apperrors.BadRequest("Too many items for a single checkout")
		}
		return nil, apperrors.Internal("Failed to prepare checkout", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          BuildLineItems(req.Items, origin, s.currency),
		SuccessURL:         stripe.String(origin + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(origin + "/cart"),
		ClientReferenceID:  stripe.String(identity.UserID.String()),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		msg := providerMessage(err)
		s.logger.Error("Stripe checkout session creation failed",
			zap.String("user_id", identity.UserID.String()),
			zap.Error(err),
		)
		recordMetric(s.metrics, awspkg.MetricCheckoutFailures, "checkout")
		return nil, apperrors.Upstream(msg, err)
	}

	s.logger.Info("Checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", identity.UserID.String()),
		zap.Int("line_items", len(req.Items)),
	)
	recordMetric(s.metrics, awspkg.MetricCheckoutSessions, "checkout")

	return &models.CheckoutSession{
		SessionID: sess.ID,
		URL:       sess.URL,
		UserID:    identity.UserID.String(),
		Email:     email,
		Items:     req.Items,
	}, nil
}
