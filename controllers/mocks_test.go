package controllers_test

import (
	"context"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/middleware"
	"hardline-backend/models"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mock services ---

type mockCheckoutService struct {
	calls    int
	origin   string
	req      models.CheckoutRequest
	createFn func(ctx context.Context, identity models.Identity, req models.CheckoutRequest, origin string) (*models.CheckoutSession, *apperrors.Error)
}

func (m *mockCheckoutService) CreateSession(ctx context.Context, identity models.Identity, req models.CheckoutRequest, origin string) (*models.CheckoutSession, *apperrors.Error) {
	m.calls++
	m.origin = origin
	m.req = req
	return m.createFn(ctx, identity, req, origin)
}

type mockReconcileService struct {
	reconcileFn func(ctx context.Context, identity models.Identity, sessionID string) (*services.ReconcileResult, *apperrors.Error)
}

func (m *mockReconcileService) Reconcile(ctx context.Context, identity models.Identity, sessionID string) (*services.ReconcileResult, *apperrors.Error) {
	return m.reconcileFn(ctx, identity, sessionID)
}

type mockWebhookService struct {
	events   []stripe.Event
	handleFn func(ctx context.Context, event stripe.Event) (*services.WebhookResult, *apperrors.Error)
}

func (m *mockWebhookService) HandleEvent(ctx context.Context, event stripe.Event) (*services.WebhookResult, *apperrors.Error) {
	m.events = append(m.events, event)
	return m.handleFn(ctx, event)
}

type mockOrderService struct {
	listFn     func(ctx context.Context, status models.OrderStatus, page, limit int) (*services.OrderResponse, *apperrors.Error)
	getFn      func(ctx context.Context, id uuid.UUID) (*models.OrderDetail, *apperrors.Error)
	updateFn   func(ctx context.Context, actor models.Identity, id uuid.UUID, status models.OrderStatus) (*models.Order, *apperrors.Error)
	deleteFn   func(ctx context.Context, actor models.Identity, id uuid.UUID) *apperrors.Error
	userListFn func(ctx context.Context, userID uuid.UUID, page, limit int) (*services.OrderResponse, *apperrors.Error)
	userGetFn  func(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Order, *apperrors.Error)
}

func (m *mockOrderService) ListOrders(ctx context.Context, status models.OrderStatus, page, limit int) (*services.OrderResponse, *apperrors.Error) {
	return m.listFn(ctx, status, page, limit)
}
func (m *mockOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.OrderDetail, *apperrors.Error) {
	return m.getFn(ctx, id)
}
func (m *mockOrderService) UpdateStatus(ctx context.Context, actor models.Identity, id uuid.UUID, status models.OrderStatus) (*models.Order, *apperrors.Error) {
	return m.updateFn(ctx, actor, id, status)
}
func (m *mockOrderService) DeleteOrder(ctx context.Context, actor models.Identity, id uuid.UUID) *apperrors.Error {
	return m.deleteFn(ctx, actor, id)
}
func (m *mockOrderService) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*services.OrderResponse, *apperrors.Error) {
	return m.userListFn(ctx, userID, page, limit)
}
func (m *mockOrderService) GetUserOrder(ctx context.Context, identity models.Identity, id uuid.UUID) (*models.Order, *apperrors.Error) {
	return m.userGetFn(ctx, identity, id)
}

type mockCartService struct {
	cart *models.Cart
}

func (m *mockCartService) GetCart(_ context.Context, ownerID string) (*models.Cart, *apperrors.Error) {
	if m.cart == nil {
		return models.NewCart(ownerID), nil
	}
	return m.cart, nil
}
func (m *mockCartService) AddItem(ctx context.Context, ownerID string, item models.CartItem) (*models.Cart, *apperrors.Error) {
	cart, _ := m.GetCart(ctx, ownerID)
	cart.AddItem(item)
	m.cart = cart
	return cart, nil
}
func (m *mockCartService) UpdateQuantity(ctx context.Context, ownerID, itemID string, quantity int) (*models.Cart, *apperrors.Error) {
	cart, _ := m.GetCart(ctx, ownerID)
	cart.UpdateQuantity(itemID, quantity)
	return cart, nil
}
func (m *mockCartService) RemoveItem(ctx context.Context, ownerID, itemID string) (*models.Cart, *apperrors.Error) {
	cart, _ := m.GetCart(ctx, ownerID)
	cart.RemoveItem(itemID)
	return cart, nil
}
func (m *mockCartService) Clear(context.Context, string) *apperrors.Error {
	m.cart = nil
	return nil
}
func (m *mockCartService) ClearAfterCheckout(context.Context, string, string) (bool, *apperrors.Error) {
	return false, nil
}

type mockChatService struct {
	order *models.Order
	err   *apperrors.Error
}

func (m *mockChatService) Authorize(context.Context, models.Identity, uuid.UUID) (*models.Order, *apperrors.Error) {
	return m.order, m.err
}
func (m *mockChatService) List(context.Context, models.Identity, uuid.UUID) ([]models.ChatMessage, *apperrors.Error) {
	return nil, m.err
}
func (m *mockChatService) Send(_ context.Context, identity models.Identity, orderID uuid.UUID, text string) (*models.ChatMessage, *apperrors.Error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ChatMessage{ID: uuid.New(), OrderID: orderID, SenderID: identity.UserID, SenderRole: identity.Role, Message: text}, nil
}

// --- Helpers ---

func customer() models.Identity {
	return models.Identity{UserID: uuid.MustParse("7d1c5a7e-6a43-4c1b-9b0e-1f2d3c4b5a69"), Email: "buyer@example.com", Role: models.RoleUser}
}

func admin() models.Identity {
	return models.Identity{UserID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin}
}

func withIdentity(identity models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityContextKey, identity)
		c.Next()
	}
}
