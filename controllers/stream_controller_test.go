package controllers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "hardline-backend/common/errors"
	"hardline-backend/controllers"
	"hardline-backend/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOrdersStream_DeliversEventsAndReleasesSubscription(t *testing.T) {
	hub := realtime.NewHub(8, zap.NewNop())
	defer hub.Close()

	r := gin.New()
	r.Use(withIdentity(admin()))
	sc := controllers.NewStreamController(hub, &mockChatService{}, zap.NewNop())
	r.GET("/api/admin/orders/stream", sc.OrdersStream)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	id := uuid.NewString()
	ev, err := realtime.NewEvent(realtime.TopicOrders, realtime.EventOrderCreated, id, map[string]string{"id": id})
	require.NoError(t, err)
	hub.Broadcast(ev)

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after client disconnect")
	}

	assert.Equal(t, 0, hub.SubscriberCount())
	body := w.Body.String()
	assert.Contains(t, body, "event:ready")
	assert.Contains(t, body, "event:order.created")
	assert.Contains(t, body, id)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}

func TestChatStream_RejectsStrangers(t *testing.T) {
	hub := realtime.NewHub(8, zap.NewNop())
	defer hub.Close()

	r := gin.New()
	r.Use(withIdentity(customer()))
	sc := controllers.NewStreamController(hub, &mockChatService{err: apperrors.NotFound("Order not found")}, zap.NewNop())
	r.GET("/api/orders/:id/messages/stream", sc.ChatStream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString()+"/messages/stream", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, hub.SubscriberCount())
}
