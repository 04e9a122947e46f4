package services

import (
	"context"
	"errors"
	"fmt"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	awspkg "hardline-backend/pkg/aws"
	"hardline-backend/realtime"
	"hardline-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

// allowedTransitions is enforced only in strict mode. Setting the current
// status again is always accepted.
var allowedTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusCompleted, models.OrderStatusCancelled},
}

func CanTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderService backs the order console and the customer's order history.
type OrderService interface {
	ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*OrderResponse, *apperrors.Error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.OrderDetail, *apperrors.Error)
	UpdateStatus(ctx context.Context, actor models.Identity, id uuid.UUID, status models.OrderStatus) (*models.Order, *apperrors.Error)
	DeleteOrder(ctx context.Context, actor models.Identity, id uuid.UUID) *apperrors.Error
	GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderResponse, *apperrors.Error)
	GetUserOrder(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Order, *apperrors.Error)
}

type orderServiceImpl struct {
	orders            repository.OrderRepository
	profiles          repository.ProfileRepository
	notifications     NotificationService
	events            realtime.Publisher
	strictTransitions bool
	metrics           *awspkg.MetricsClient
	logger            *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	profiles repository.ProfileRepository,
	notifications NotificationService,
	events realtime.Publisher,
	strictTransitions bool,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		orders:            orders,
		profiles:          profiles,
		notifications:     notifications,
		events:            events,
		strictTransitions: strictTransitions,
		metrics:           metrics,
		logger:            logger,
	}
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*OrderResponse, *apperrors.Error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.BadRequest("Invalid status filter")
	}
	orders, total, err := s.orders.List(ctx, repository.OrderFilter{Status: status, Page: page, Limit: limit})
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch orders", err)
	}
	return &OrderResponse{Orders: orders, Meta: newMetaData(page, limit, total)}, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*models.OrderDetail, *apperrors.Error) {
	order, appErr := s.findOrder(ctx, id)
	if appErr != nil {
		return nil, appErr
	}

	detail := &models.OrderDetail{Order: order}
	if order.UserID != nil {
		profile, err := s.profiles.FindByID(ctx, *order.UserID)
		switch {
		case err == nil:
			detail.Customer = profile
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Warn("Failed to load customer profile", zap.String("order_id", id.String()), zap.Error(err))
		}
	}
	return detail, nil
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, actor models.Identity, id uuid.UUID, status models.OrderStatus) (*models.Order, *apperrors.Error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest("Invalid order status")
	}
	order, appErr := s.findOrder(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if s.strictTransitions && !CanTransition(order.Status, status) {
		return nil, apperrors.Conflict(fmt.Sprintf("Cannot change order status from %s to %s", order.Status, status))
	}

	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Order not found")
		}
		s.logger.Error("Failed to update order status", zap.String("order_id", id.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to update order status", err)
	}

	previous := order.Status
	order.Status = status
	s.logger.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("actor_id", actor.UserID.String()),
	)

	if order.UserID != nil && previous != status {
		title := "Order status updated"
		msg := fmt.Sprintf("Your order #%s is now %s", order.ShortID(), status)
		if err := s.notifications.NotifyUser(ctx, *order.UserID, title, msg, notificationTypeFor(status)); err != nil {
			s.logger.Error("Failed to notify customer of status change", zap.String("order_id", id.String()), zap.Error(err))
			recordMetric(s.metrics, awspkg.MetricNotificationFailures, "orders")
		}
	}
	s.publish(ctx, realtime.EventOrderStatusChanged, order.ID, order)
	return order, nil
}

func (s *orderServiceImpl) DeleteOrder(ctx context.Context, actor models.Identity, id uuid.UUID) *apperrors.Error {
	if !actor.IsAdmin() {
		return apperrors.Forbidden("Only administrators can delete orders")
	}
	if err := s.orders.DeleteWithItems(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Order not found")
		}
		s.logger.Error("Failed to delete order", zap.String("order_id", id.String()), zap.Error(err))
		return apperrors.Internal("Failed to delete order", err)
	}

	s.logger.Info("Order deleted", zap.String("order_id", id.String()), zap.String("actor_id", actor.UserID.String()))
	recordMetric(s.metrics, awspkg.MetricOrdersDeleted, "orders")
	s.publish(ctx, realtime.EventOrderDeleted, id, map[string]string{"id": id.String()})
	return nil
}

func (s *orderServiceImpl) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderResponse, *apperrors.Error) {
	uid := userID
	orders, total, err := s.orders.List(ctx, repository.OrderFilter{UserID: &uid, Page: page, Limit: limit})
	if err != nil {
		s.logger.Error("Failed to fetch user orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch orders", err)
	}
	return &OrderResponse{Orders: orders, Meta: newMetaData(page, limit, total)}, nil
}

func (s *orderServiceImpl) GetUserOrder(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Order, *apperrors.Error) {
	order, appErr := s.findOrder(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if !identity.IsStaff() && (order.UserID == nil || *order.UserID != identity.UserID) {
		return nil, apperrors.NotFound("Order not found")
	}
	return order, nil
}

func (s *orderServiceImpl) findOrder(ctx context.Context, id uuid.UUID) (*models.Order, *apperrors.Error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Order not found")
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", id.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch order", err)
	}
	return order, nil
}

func (s *orderServiceImpl) publish(ctx context.Context, eventType string, id uuid.UUID, payload interface{}) {
	ev, err := realtime.NewEvent(realtime.TopicOrders, eventType, id.String(), payload)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish order event", zap.String("order_id", id.String()), zap.String("event_type", eventType), zap.Error(err))
		recordMetric(s.metrics, awspkg.MetricRealtimePublishErrors, "orders")
	}
}

func notificationTypeFor(status models.OrderStatus) models.NotificationType {
	switch status {
	case models.OrderStatusCompleted:
		return models.NotificationSuccess
	case models.OrderStatusCancelled:
		return models.NotificationWarning
	default:
		return models.NotificationInfo
	}
}
