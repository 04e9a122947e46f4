package routes

import (
	"net/http"
	"time"

	commonmw "hardline-backend/common/middleware"
	"hardline-backend/controllers"
	"hardline-backend/middleware"

	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers wired by RegisterRoutes.
type Controllers struct {
	Cart          *controllers.CartController
	Checkout      *controllers.CheckoutController
	Webhook       *controllers.WebhookController
	Orders        *controllers.OrderController
	Notifications *controllers.NotificationController
	Chat          *controllers.ChatController
	Streams       *controllers.StreamController
}

// RegisterRoutes mounts the API. Stream routes are registered without the
// request timeout since they stay open for the life of the client.
func RegisterRoutes(router *gin.Engine, ctrl Controllers, auth middleware.TokenValidator, requestTimeout time.Duration) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "hardline-backend"})
	})

	api := router.Group("/api")

	// Stripe signs the request; no bearer token.
	api.POST("/stripe/webhook", commonmw.Timeout(requestTimeout), ctrl.Webhook.StripeWebhook)

	authed := api.Group("", middleware.AuthMiddleware(auth))
	streams := authed.Group("")
	rest := authed.Group("", commonmw.Timeout(requestTimeout))

	cart := rest.Group("/cart")
	{
		cart.GET("", ctrl.Cart.GetCart)
		cart.POST("/items", ctrl.Cart.AddItem)
		cart.PATCH("/items/:id", ctrl.Cart.UpdateQuantity)
		cart.DELETE("/items/:id", ctrl.Cart.RemoveItem)
		cart.DELETE("", ctrl.Cart.ClearCart)
		cart.POST("/checkout", ctrl.Cart.Checkout)
	}

	checkout := rest.Group("/checkout")
	{
		checkout.POST("/session", ctrl.Checkout.CreateSession)
	}
	// Reconciliation may wait on the webhook for several seconds.
	authed.GET("/checkout/success", ctrl.Checkout.Success)

	orders := rest.Group("/orders")
	{
		orders.GET("", ctrl.Orders.GetOrders)
		orders.GET("/:id", ctrl.Orders.GetOrderByID)
		orders.GET("/:id/messages", ctrl.Chat.GetMessages)
		orders.POST("/:id/messages", ctrl.Chat.SendMessage)
	}
	streams.GET("/orders/:id/messages/stream", ctrl.Streams.ChatStream)

	notifications := rest.Group("/notifications")
	{
		notifications.GET("", ctrl.Notifications.GetNotifications)
		notifications.PATCH("/:id/read", ctrl.Notifications.MarkRead)
		notifications.DELETE("/:id", ctrl.Notifications.DeleteNotification)
	}

	admin := rest.Group("/admin", middleware.StaffOnly())
	{
		admin.GET("/orders", ctrl.Orders.GetAllOrders)
		admin.GET("/orders/:id", ctrl.Orders.GetOrderDetail)
		admin.PATCH("/orders/:id/status", ctrl.Orders.UpdateOrderStatus)
		admin.DELETE("/orders/:id", middleware.AdminOnly(), ctrl.Orders.DeleteOrder)
		admin.GET("/notifications", ctrl.Notifications.GetBroadcastNotifications)
	}
	streams.GET("/admin/orders/stream", middleware.StaffOnly(), ctrl.Streams.OrdersStream)
}
