package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	"hardline-backend/realtime"
	"hardline-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxChatMessageLength = 2000
	chatHistoryLimit     = 200
)

// ChatService is the per-order conversation between a customer and staff.
type ChatService interface {
	Authorize(ctx context.Context, identity models.Identity, orderID uuid.UUID) (*models.Order, *apperrors.Error)
	List(ctx context.Context, identity models.Identity, orderID uuid.UUID) ([]models.ChatMessage, *apperrors.Error)
	Send(ctx context.Context, identity models.Identity, orderID uuid.UUID, text string) (*models.ChatMessage, *apperrors.Error)
}

type chatServiceImpl struct {
	chats         repository.ChatRepository
	orders        repository.OrderRepository
	notifications NotificationService
	events        realtime.Publisher
	logger        *zap.Logger
}

func NewChatService(chats repository.ChatRepository, orders repository.OrderRepository, notifications NotificationService, events realtime.Publisher, logger *zap.Logger) ChatService {
	return &chatServiceImpl{chats: chats, orders: orders, notifications: notifications, events: events, logger: logger}
}

// Authorize admits staff and the customer who owns the order.
func (s *chatServiceImpl) Authorize(ctx context.Context, identity models.Identity, orderID uuid.UUID) (*models.Order, *apperrors.Error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Order not found")
		}
		s.logger.Error("Failed to fetch order for chat", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch order", err)
	}
	if identity.IsStaff() || (order.UserID != nil && *order.UserID == identity.UserID) {
		return order, nil
	}
	return nil, apperrors.NotFound("Order not found")
}

func (s *chatServiceImpl) List(ctx context.Context, identity models.Identity, orderID uuid.UUID) ([]models.ChatMessage, *apperrors.Error) {
	if _, appErr := s.Authorize(ctx, identity, orderID); appErr != nil {
		return nil, appErr
	}
	msgs, err := s.chats.ListByOrder(ctx, orderID, chatHistoryLimit)
	if err != nil {
		s.logger.Error("Failed to list chat messages", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch messages", err)
	}
	return msgs, nil
}

func (s *chatServiceImpl) Send(ctx context.Context, identity models.Identity, orderID uuid.UUID, text string) (*models.ChatMessage, *apperrors.Error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.BadRequest("Message must not be empty")
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return nil, apperrors.BadRequest(fmt.Sprintf("Message must be at most %d characters", maxChatMessageLength))
	}

	order, appErr := s.Authorize(ctx, identity, orderID)
	if appErr != nil {
		return nil, appErr
	}

	role := identity.Role
	if role == "" {
		role = models.RoleUser
	}
	msg := &models.ChatMessage{OrderID: orderID, SenderID: identity.UserID, SenderRole: role, Message: text}
	if err := s.chats.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to save chat message", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to send message", err)
	}

	title := fmt.Sprintf("New message on order #%s", order.ShortID())
	var notifyErr error
	switch {
	case identity.IsStaff() && order.UserID != nil && *order.UserID != identity.UserID:
		notifyErr = s.notifications.NotifyUser(ctx, *order.UserID, title, preview(text), models.NotificationInfo)
	case !identity.IsStaff():
		notifyErr = s.notifications.NotifyStaff(ctx, title, preview(text), models.NotificationInfo)
	}
	if notifyErr != nil {
		s.logger.Warn("Failed to create chat notification", zap.String("order_id", orderID.String()), zap.Error(notifyErr))
	}

	ev, err := realtime.NewEvent(realtime.TopicChat, realtime.EventChatMessage, orderID.String(), msg)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish chat event", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	return msg, nil
}

func preview(text string) string {
	const max = 120
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
