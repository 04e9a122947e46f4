package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	awspkg "hardline-backend/pkg/aws"
	"hardline-backend/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReconcileState string

const (
	StateVerifying       ReconcileState = "verifying"
	StateOrderFound      ReconcileState = "order_found"
	StateFallbackSuccess ReconcileState = "fallback_success"
	StateError           ReconcileState = "error"

	invalidVisitRedirect = "/"
	invalidVisitDelayMs  = 3000
)

type ReconcileResult struct {
	State           ReconcileState `json:"state"`
	SessionID       string         `json:"session_id,omitempty"`
	Order           *models.Order  `json:"order,omitempty"`
	CartCleared     bool           `json:"cart_cleared"`
	Attempts        int            `json:"attempts"`
	Message         string         `json:"message"`
	RedirectTo      string         `json:"redirect_to,omitempty"`
	RedirectAfterMs int            `json:"redirect_after_ms,omitempty"`
}

// Backoff bounds the wait for the webhook to materialize an order.
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	MaxWait   time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Attempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second, MaxWait: 10 * time.Second}
}

// Delays lists the waits between consecutive attempts: doubling from
// BaseDelay, each capped at MaxDelay, stopping before MaxWait is exceeded.
func (b Backoff) Delays() []time.Duration {
	var out []time.Duration
	var waited time.Duration
	d := b.BaseDelay
	for i := 1; i < b.Attempts; i++ {
		if b.MaxDelay > 0 && d > b.MaxDelay {
			d = b.MaxDelay
		}
		if b.MaxWait > 0 && waited+d > b.MaxWait {
			break
		}
		out = append(out, d)
		waited += d
		d *= 2
	}
	return out
}

// ReconcileService confirms a checkout after the buyer is redirected back.
type ReconcileService interface {
	Reconcile(ctx context.Context, identity models.Identity, sessionID string) (*ReconcileResult, *apperrors.Error)
}

type reconcileServiceImpl struct {
	orders  repository.OrderRepository
	carts   CartService
	backoff Backoff
	metrics *awspkg.MetricsClient
	logger  *zap.Logger
}

func NewReconcileService(orders repository.OrderRepository, carts CartService, backoff Backoff, metrics *awspkg.MetricsClient, logger *zap.Logger) ReconcileService {
	if backoff.Attempts < 1 {
		backoff.Attempts = 1
	}
	return &reconcileServiceImpl{orders: orders, carts: carts, backoff: backoff, metrics: metrics, logger: logger}
}

func (s *reconcileServiceImpl) Reconcile(ctx context.Context, identity models.Identity, sessionID string) (*ReconcileResult, *apperrors.Error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return &ReconcileResult{
			State:           StateError,
			Message:         "Invalid checkout session",
			RedirectTo:      invalidVisitRedirect,
			RedirectAfterMs: invalidVisitDelayMs,
		}, nil
	}

	log := s.logger.With(zap.String("session_id", sessionID), zap.String("user_id", identity.UserID.String()))

	order, attempts, err := s.awaitOrder(ctx, log, sessionID)
	if err != nil {
		return nil, apperrors.Unavailable("Checkout verification interrupted", err)
	}

	result := &ReconcileResult{SessionID: sessionID, Attempts: attempts}
	if order != nil {
		result.State = StateOrderFound
		result.Message = "Your order has been placed"
		if visibleTo(order, identity) {
			result.Order = order
			if full, err := s.orders.FindByID(ctx, order.ID); err == nil {
				result.Order = full
			}
		}
	} else {
		log.Info("Order not visible yet, confirming checkout without it", zap.Int("attempts", attempts))
		recordMetric(s.metrics, awspkg.MetricReconcileFallbacks, "reconcile")
		result.State = StateFallbackSuccess
		result.Message = "Payment received. Your order confirmation will follow shortly"
	}

	cleared, appErr := s.carts.ClearAfterCheckout(ctx, identity.OwnerID(), sessionID)
	if appErr != nil {
		log.Warn("Cart not cleared after checkout", zap.Error(appErr))
	}
	result.CartCleared = cleared
	return result, nil
}

// awaitOrder polls for the order. Lookup errors count as misses; only
// cancellation of ctx is returned as an error.
func (s *reconcileServiceImpl) awaitOrder(ctx context.Context, log *zap.Logger, sessionID string) (*models.Order, int, error) {
	delays := s.backoff.Delays()
	attempts := 0
	for {
		attempts++
		order, err := s.orders.FindBySessionID(ctx, sessionID)
		if err == nil {
			return order, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Order lookup failed", zap.Int("attempt", attempts), zap.Error(err))
		}
		if attempts > len(delays) {
			return nil, attempts, nil
		}

		timer := time.NewTimer(delays[attempts-1])
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempts, ctx.Err()
		case <-timer.C:
		}
	}
}

func visibleTo(order *models.Order, identity models.Identity) bool {
	if identity.IsStaff() {
		return true
	}
	if order.UserID != nil {
		return *order.UserID == identity.UserID
	}
	return identity.Email != "" && strings.EqualFold(order.CustomerEmail, identity.Email)
}
