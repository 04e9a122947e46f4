package services

import (
	"context"
	"errors"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	"hardline-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Meta          MetaData              `json:"meta"`
}

// NotificationService writes and serves in-app notifications.
type NotificationService interface {
	NotifyStaff(ctx context.Context, title, message string, typ models.NotificationType) error
	NotifyUser(ctx context.Context, userID uuid.UUID, title, message string, typ models.NotificationType) error
	List(ctx context.Context, identity models.Identity, broadcast, unreadOnly bool, page, limit int) (*NotificationResponse, *apperrors.Error)
	MarkRead(ctx context.Context, identity models.Identity, id uuid.UUID) *apperrors.Error
	Delete(ctx context.Context, identity models.Identity, id uuid.UUID) *apperrors.Error
}

type notificationServiceImpl struct {
	repo   repository.NotificationRepository
	logger *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationServiceImpl{repo: repo, logger: logger}
}

func (s *notificationServiceImpl) NotifyStaff(ctx context.Context, title, message string, typ models.NotificationType) error {
	return s.repo.Create(ctx, &models.Notification{Title: title, Message: message, Type: typ})
}

func (s *notificationServiceImpl) NotifyUser(ctx context.Context, userID uuid.UUID, title, message string, typ models.NotificationType) error {
	uid := userID
	return s.repo.Create(ctx, &models.Notification{Title: title, Message: message, Type: typ, UserID: &uid})
}

func (s *notificationServiceImpl) List(ctx context.Context, identity models.Identity, broadcast, unreadOnly bool, page, limit int) (*NotificationResponse, *apperrors.Error) {
	if broadcast && !identity.IsStaff() {
		return nil, apperrors.Forbidden("Staff access required")
	}

	filter := models.NotificationFilter{Broadcast: broadcast, Unread: unreadOnly, Page: page, PageSize: limit}
	if !broadcast {
		uid := identity.UserID
		filter.UserID = &uid
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list notifications", zap.String("user_id", identity.UserID.String()), zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch notifications", err)
	}
	return &NotificationResponse{Notifications: items, Meta: newMetaData(page, limit, total)}, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, identity models.Identity, id uuid.UUID) *apperrors.Error {
	if appErr := s.authorize(ctx, identity, id); appErr != nil {
		return appErr
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return s.mapErr("Failed to update notification", err)
	}
	return nil
}

func (s *notificationServiceImpl) Delete(ctx context.Context, identity models.Identity, id uuid.UUID) *apperrors.Error {
	if appErr := s.authorize(ctx, identity, id); appErr != nil {
		return appErr
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapErr("Failed to delete notification", err)
	}
	return nil
}

// authorize allows the recipient, or staff for broadcast notifications.
// Anything else looks like a missing notification.
func (s *notificationServiceImpl) authorize(ctx context.Context, identity models.Identity, id uuid.UUID) *apperrors.Error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapErr("Failed to fetch notification", err)
	}
	switch {
	case n.UserID == nil && identity.IsStaff():
		return nil
	case n.UserID != nil && *n.UserID == identity.UserID:
		return nil
	}
	return apperrors.NotFound("Notification not found")
}

func (s *notificationServiceImpl) mapErr(msg string, err error) *apperrors.Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("Notification not found")
	}
	s.logger.Error(msg, zap.Error(err))
	return apperrors.Internal(msg, err)
}
