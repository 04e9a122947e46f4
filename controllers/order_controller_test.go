package controllers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/controllers"
	"hardline-backend/models"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupOrderRouter(svc *mockOrderService, identity models.Identity) *gin.Engine {
	r := gin.New()
	r.Use(withIdentity(identity))
	oc := controllers.NewOrderController(svc, zap.NewNop())
	r.GET("/api/admin/orders", oc.GetAllOrders)
	r.GET("/api/admin/orders/:id", oc.GetOrderDetail)
	r.PATCH("/api/admin/orders/:id/status", oc.UpdateOrderStatus)
	r.DELETE("/api/admin/orders/:id", oc.DeleteOrder)
	r.GET("/api/orders", oc.GetOrders)
	r.GET("/api/orders/:id", oc.GetOrderByID)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetAllOrders_PassesFilterAndPagination(t *testing.T) {
	var gotStatus models.OrderStatus
	var gotPage, gotLimit int
	svc := &mockOrderService{listFn: func(_ context.Context, status models.OrderStatus, page, limit int) (*services.OrderResponse, *apperrors.Error) {
		gotStatus, gotPage, gotLimit = status, page, limit
		return &services.OrderResponse{Orders: []models.Order{}}, nil
	}}

	w := serve(setupOrderRouter(svc, admin()), http.MethodGet, "/api/admin/orders?status=processing&page=2&limit=500", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusProcessing, gotStatus)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 100, gotLimit)
}

func TestUpdateOrderStatus(t *testing.T) {
	id := uuid.New()
	svc := &mockOrderService{updateFn: func(_ context.Context, _ models.Identity, gotID uuid.UUID, status models.OrderStatus) (*models.Order, *apperrors.Error) {
		if status == "shipped" {
			return nil, apperrors.BadRequest("Invalid order status")
		}
		return &models.Order{ID: gotID, Status: status}, nil
	}}
	r := setupOrderRouter(svc, admin())

	w := serve(r, http.MethodPatch, "/api/admin/orders/"+id.String()+"/status", `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = serve(r, http.MethodPatch, "/api/admin/orders/"+id.String()+"/status", `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPatch, "/api/admin/orders/"+id.String()+"/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPatch, "/api/admin/orders/not-a-uuid/status", `{"status":"completed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOrder_MapsServiceErrors(t *testing.T) {
	deleted := map[uuid.UUID]bool{}
	svc := &mockOrderService{
		deleteFn: func(_ context.Context, actor models.Identity, id uuid.UUID) *apperrors.Error {
			if !actor.IsAdmin() {
				return apperrors.Forbidden("Only administrators can delete orders")
			}
			if deleted[id] {
				return apperrors.NotFound("Order not found")
			}
			deleted[id] = true
			return nil
		},
		getFn: func(_ context.Context, id uuid.UUID) (*models.OrderDetail, *apperrors.Error) {
			if deleted[id] {
				return nil, apperrors.NotFound("Order not found")
			}
			return &models.OrderDetail{Order: &models.Order{ID: id}}, nil
		},
	}
	id := uuid.New()
	mod := models.Identity{UserID: uuid.New(), Role: models.RoleModerator}

	w := serve(setupOrderRouter(svc, mod), http.MethodDelete, "/api/admin/orders/"+id.String(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := setupOrderRouter(svc, admin())
	w = serve(r, http.MethodDelete, "/api/admin/orders/"+id.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/admin/orders/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerOrders_ScopedToCaller(t *testing.T) {
	var gotUser uuid.UUID
	svc := &mockOrderService{userListFn: func(_ context.Context, userID uuid.UUID, _, _ int) (*services.OrderResponse, *apperrors.Error) {
		gotUser = userID
		return &services.OrderResponse{}, nil
	}}

	w := serve(setupOrderRouter(svc, customer()), http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, customer().UserID, gotUser)
}
