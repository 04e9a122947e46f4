package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	awspkg "hardline-backend/pkg/aws"
	"hardline-backend/realtime"
	"hardline-backend/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookClaimTTL = 72 * time.Hour

type WebhookOutcome string

const (
	WebhookOrderCreated WebhookOutcome = "order_created"
	WebhookDuplicate    WebhookOutcome = "duplicate"
	WebhookUnpaid       WebhookOutcome = "unpaid"
	WebhookIgnored      WebhookOutcome = "ignored"
)

type WebhookResult struct {
	Outcome WebhookOutcome
	Order   *models.Order
}

// WebhookService turns verified payment events into orders.
type WebhookService interface {
	HandleEvent(ctx context.Context, event stripe.Event) (*WebhookResult, *apperrors.Error)
}

type webhookServiceImpl struct {
	orders        repository.OrderRepository
	profiles      repository.ProfileRepository
	notifications NotificationService
	events        realtime.Publisher
	idem          repository.IdempotencyStore
	metrics       *awspkg.MetricsClient
	logger        *zap.Logger
}

func NewWebhookService(
	orders repository.OrderRepository,
	profiles repository.ProfileRepository,
	notifications NotificationService,
	events realtime.Publisher,
	idem repository.IdempotencyStore,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) WebhookService {
	return &webhookServiceImpl{
		orders:        orders,
		profiles:      profiles,
		notifications: notifications,
		events:        events,
		idem:          idem,
		metrics:       metrics,
		logger:        logger,
	}
}

func (s *webhookServiceImpl) HandleEvent(ctx context.Context, event stripe.Event) (*WebhookResult, *apperrors.Error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return s.handleSessionCompleted(ctx, event)
	default:
		s.logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		return &WebhookResult{Outcome: WebhookIgnored}, nil
	}
}

func (s *webhookServiceImpl) handleSessionCompleted(ctx context.Context, event stripe.Event) (*WebhookResult, *apperrors.Error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		s.logger.Error("Failed to unmarshal checkout session", zap.String("event_id", event.ID), zap.Error(err))
		return nil, apperrors.BadRequest("Invalid checkout session payload")
	}

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("session_id", sess.ID))

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		log.Info("Checkout session not paid yet", zap.String("payment_status", string(sess.PaymentStatus)))
		return &WebhookResult{Outcome: WebhookUnpaid}, nil
	}

	claimed := false
	if s.idem != nil {
		ok, err := s.idem.Claim(ctx, event.ID, sess.ID, webhookClaimTTL)
		switch {
		case err != nil:
			log.Warn("Webhook idempotency store unavailable, relying on order lookup", zap.Error(err))
		case !ok:
			// A claimed event may belong to a worker that died before
			// inserting; the session lookup and unique index decide.
			log.Info("Webhook event already claimed, checking for its order")
		default:
			claimed = true
		}
	}

	result, appErr := s.materializeOrder(ctx, log, &sess)
	if appErr != nil {
		if claimed {
			if err := s.idem.Release(context.Background(), event.ID); err != nil {
				log.Warn("Failed to release webhook claim", zap.Error(err))
			}
		}
		recordMetric(s.metrics, awspkg.MetricWebhookFailures, "webhook")
		return nil, appErr
	}
	return result, nil
}

func (s *webhookServiceImpl) materializeOrder(ctx context.Context, log *zap.Logger, sess *stripe.CheckoutSession) (*WebhookResult, *apperrors.Error) {
	if existing, err := s.orders.FindBySessionID(ctx, sess.ID); err == nil {
		log.Info("Order already exists for session", zap.String("order_id", existing.ID.String()))
		return &WebhookResult{Outcome: WebhookDuplicate, Order: existing}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("Failed to look up order by session", zap.Error(err))
		return nil, apperrors.Internal("Failed to process webhook", err)
	}

	items, recordedTotal, err := DecodeSessionItems(sess.Metadata)
	if err != nil {
		log.Error("Checkout session metadata unusable", zap.Error(err))
		return nil, apperrors.Internal("Invalid checkout session metadata", err)
	}

	email := sessionEmail(sess)
	userID, err := s.resolveUser(ctx, email)
	if err != nil {
		log.Error("Failed to resolve paying user", zap.Error(err))
		return nil, apperrors.Internal("Failed to process webhook", err)
	}

	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		CustomerEmail:   email,
		CustomerName:    sessionCustomerName(sess),
		Currency:        strings.ToLower(string(sess.Currency)),
		StripeSessionID: sess.ID,
		Items:           items,
	}
	if order.Currency == "" {
		order.Currency = string(stripe.CurrencyUSD)
	}
	order.TotalAmount = order.ItemsTotal()

	if !recordedTotal.Equal(order.TotalAmount) {
		log.Warn("Metadata total differs from item sum",
			zap.String("metadata_total", recordedTotal.StringFixed(2)),
			zap.String("items_total", order.TotalAmount.StringFixed(2)),
		)
	}
	if paid := decimal.New(sess.AmountTotal, -2); sess.AmountTotal > 0 && !paid.Equal(order.TotalAmount) {
		log.Warn("Order total differs from amount charged",
			zap.String("amount_total", paid.StringFixed(2)),
			zap.String("order_total", order.TotalAmount.StringFixed(2)),
		)
	}

	if err := s.orders.CreateWithItems(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			log.Info("Order created concurrently for session")
			return &WebhookResult{Outcome: WebhookDuplicate}, nil
		}
		log.Error("Failed to create order", zap.Error(err))
		return nil, apperrors.Internal("Failed to create order", err)
	}

	log.Info("Order created from checkout session",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.Bool("linked_user", userID != nil),
	)
	recordMetric(s.metrics, awspkg.MetricOrdersCreated, "webhook")

	s.notifyStaff(ctx, log, order)
	s.publish(ctx, log, order)

	return &WebhookResult{Outcome: WebhookOrderCreated, Order: order}, nil
}

// resolveUser returns nil when no profile carries the email.
func (s *webhookServiceImpl) resolveUser(ctx context.Context, email string) (*uuid.UUID, error) {
	if email == "" {
		return nil, nil
	}
	profile, err := s.profiles.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id := profile.ID
	return &id, nil
}

func (s *webhookServiceImpl) notifyStaff(ctx context.Context, log *zap.Logger, order *models.Order) {
	title := fmt.Sprintf("New order #%s", order.ShortID())
	msg := fmt.Sprintf("%s %s from %s", strings.ToUpper(order.Currency), order.TotalAmount.StringFixed(2), displayEmail(order.CustomerEmail))
	if err := s.notifications.NotifyStaff(ctx, title, msg, models.NotificationInfo); err != nil {
		log.Error("Failed to create order notification", zap.String("order_id", order.ID.String()), zap.Error(err))
		recordMetric(s.metrics, awspkg.MetricNotificationFailures, "webhook")
	}
}

func (s *webhookServiceImpl) publish(ctx context.Context, log *zap.Logger, order *models.Order) {
	ev, err := realtime.NewEvent(realtime.TopicOrders, realtime.EventOrderCreated, order.ID.String(), order)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		log.Warn("Failed to publish order event", zap.String("order_id", order.ID.String()), zap.Error(err))
		recordMetric(s.metrics, awspkg.MetricRealtimePublishErrors, "webhook")
	}
}

func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	if sess.CustomerEmail != "" {
		return sess.CustomerEmail
	}
	return sess.Metadata[MetaUserEmail]
}

func sessionCustomerName(sess *stripe.CheckoutSession) string {
	if name := sess.Metadata[MetaCustomerName]; name != "" {
		return name
	}
	if sess.CustomerDetails != nil {
		return sess.CustomerDetails.Name
	}
	return ""
}

func displayEmail(email string) string {
	if email == "" {
		return "unknown customer"
	}
	return email
}
