package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/yashrajoria/tomeshelf/common/middleware"
	"github.com/yashrajoria/tomeshelf/controllers"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Cart     *controllers.CartController
	Orders   *controllers.OrderController
	Checkout *controllers.CheckoutController
}

// HealthCheck reports a dependency as unhealthy by returning an error.
type HealthCheck func(ctx context.Context) error

// Register mounts the storefront API under /api. auth guards every route except the
// Stripe webhook, which is authenticated by its signature.
func Register(r *gin.Engine, h Handlers, auth gin.HandlerFunc, checks map[string]HealthCheck) {
	r.GET("/health", healthHandler(checks))

	api := r.Group("/api")
	api.POST("/checkout/webhook", h.Checkout.StripeWebhook)

	user := api.Group("")
	user.Use(auth)
	user.GET("/cart", h.Cart.GetCart)
	user.POST("/items", h.Cart.AddItem)
	user.PUT("/items/:bookId", h.Cart.UpdateItem)
	user.DELETE("/items/:bookId", h.Cart.RemoveItem)
	user.DELETE("/items", h.Cart.ClearCart)
	user.POST("/checkout", h.Cart.Checkout)

	user.POST("/orders", h.Checkout.CreateOrder)
	user.GET("/orders", h.Orders.GetOrders)
	user.GET("/orders/:id", h.Orders.GetOrderByID)

	user.POST("/checkout/payment", h.Checkout.CreatePaymentSession)
	user.POST("/checkout/confirm-order", h.Checkout.ConfirmOrder)

	admin := user.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders", h.Orders.GetAllOrders)
	admin.PUT("/orders/:orderId/status", h.Orders.UpdateOrderStatus)
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}

		body := gin.H{"status": "OK", "service": "tomeshelf"}
		if status != http.StatusOK {
			body["status"] = "DEGRADED"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		c.JSON(status, body)
	}
}
