package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/models"
	"hardline-backend/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const checkoutClearTTL = 7 * 24 * time.Hour

// CartService loads, mutates and saves an owner's cart.
type CartService interface {
	GetCart(ctx context.Context, ownerID string) (*models.Cart, *apperrors.Error)
	AddItem(ctx context.Context, ownerID string, item models.CartItem) (*models.Cart, *apperrors.Error)
	UpdateQuantity(ctx context.Context, ownerID, itemID string, quantity int) (*models.Cart, *apperrors.Error)
	RemoveItem(ctx context.Context, ownerID, itemID string) (*models.Cart, *apperrors.Error)
	Clear(ctx context.Context, ownerID string) *apperrors.Error
	// ClearAfterCheckout empties the cart at most once per checkout session
	// and reports whether this call did the clearing.
	ClearAfterCheckout(ctx context.Context, ownerID, sessionID string) (bool, *apperrors.Error)
}

type cartServiceImpl struct {
	repo     *repository.CartRepository
	idem     repository.IdempotencyStore
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCartService(repo *repository.CartRepository, idem repository.IdempotencyStore, logger *zap.Logger) CartService {
	return &cartServiceImpl{
		repo:     repo,
		idem:     idem,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *cartServiceImpl) GetCart(ctx context.Context, ownerID string) (*models.Cart, *apperrors.Error) {
	cart, err := s.repo.GetCart(ctx, ownerID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, apperrors.Internal("Failed to get cart", err)
	}
	if cart == nil {
		cart = models.NewCart(ownerID)
	}
	return cart, nil
}

func (s *cartServiceImpl) AddItem(ctx context.Context, ownerID string, item models.CartItem) (*models.Cart, *apperrors.Error) {
	if appErr := ValidateCartItem(s.validate, item); appErr != nil {
		return nil, appErr
	}
	return s.mutate(ctx, ownerID, func(c *models.Cart) { c.AddItem(item) })
}

func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, ownerID, itemID string, quantity int) (*models.Cart, *apperrors.Error) {
	return s.mutate(ctx, ownerID, func(c *models.Cart) { c.UpdateQuantity(itemID, quantity) })
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, ownerID, itemID string) (*models.Cart, *apperrors.Error) {
	return s.mutate(ctx, ownerID, func(c *models.Cart) { c.RemoveItem(itemID) })
}

func (s *cartServiceImpl) Clear(ctx context.Context, ownerID string) *apperrors.Error {
	if err := s.repo.DeleteCart(ctx, ownerID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("owner_id", ownerID), zap.Error(err))
		return apperrors.Internal("Failed to clear cart", err)
	}
	return nil
}

func (s *cartServiceImpl) ClearAfterCheckout(ctx context.Context, ownerID, sessionID string) (bool, *apperrors.Error) {
	claimed, err := s.idem.Claim(ctx, sessionID, ownerID, checkoutClearTTL)
	if err != nil {
		s.logger.Error("Failed to claim cart clear", zap.String("session_id", sessionID), zap.Error(err))
		return false, apperrors.Internal("Failed to clear cart", err)
	}
	if !claimed {
		return false, nil
	}

	if err := s.repo.DeleteCart(ctx, ownerID); err != nil {
		if relErr := s.idem.Release(ctx, sessionID); relErr != nil {
			s.logger.Warn("Failed to release cart clear claim", zap.String("session_id", sessionID), zap.Error(relErr))
		}
		s.logger.Error("Failed to clear cart after checkout", zap.String("owner_id", ownerID), zap.Error(err))
		return false, apperrors.Internal("Failed to clear cart", err)
	}

	s.logger.Info("Cart cleared after checkout", zap.String("owner_id", ownerID), zap.String("session_id", sessionID))
	return true, nil
}

func (s *cartServiceImpl) mutate(ctx context.Context, ownerID string, fn func(*models.Cart)) (*models.Cart, *apperrors.Error) {
	cart, err := s.repo.UpdateCart(ctx, ownerID, fn)
	if errors.Is(err, repository.ErrCartContention) {
		s.logger.Warn("Cart update kept conflicting", zap.String("owner_id", ownerID))
		return nil, apperrors.Conflict("Cart is being updated elsewhere, please retry")
	}
	if err != nil {
		s.logger.Error("Failed to save cart", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, apperrors.Internal("Failed to save cart", err)
	}
	return cart, nil
}

// ValidateCartItem checks struct tags and that the price is not negative.
func ValidateCartItem(v *validator.Validate, item models.CartItem) *apperrors.Error {
	if err := v.Struct(item); err != nil {
		return apperrors.New(http.StatusBadRequest, "Invalid cart item: "+err.Error(), err)
	}
	if item.Price.IsNegative() {
		return apperrors.BadRequest("Invalid cart item: price must not be negative")
	}
	return nil
}
