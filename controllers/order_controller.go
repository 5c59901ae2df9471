package controllers

import (
	"context"
	"net/http"

	"github.com/yashrajoria/tomeshelf/common/auth"
	"github.com/yashrajoria/tomeshelf/common/middleware"
	"github.com/yashrajoria/tomeshelf/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderService is the read and admin side of services.OrderService.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string, requester auth.Identity) (*models.Order, error)
	ListOrders(ctx context.Context, ownerID string) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string, paymentStatus *string) (*models.Order, error)
}

type OrderController struct {
	orders OrderService
	logger *zap.Logger
}

func NewOrderController(orders OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orders: orders, logger: orNop(logger)}
}

type updateStatusRequest struct {
	Status        string  `json:"status" binding:"required"`
	PaymentStatus *string `json:"paymentStatus"`
}

// GetOrders returns the caller's orders, newest first.
func (oc *OrderController) GetOrders(c *gin.Context) {
	orders, err := oc.orders.ListOrders(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respond(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Orders fetched successfully", "orders": orders, "count": len(orders)})
}

// GetOrderByID returns one order to its owner or an admin.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	order, err := oc.orders.GetOrder(c.Request.Context(), c.Param("id"), middleware.GetIdentity(c))
	if err != nil {
		respond(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// GetAllOrders returns every order (admin only)
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := oc.orders.ListAllOrders(c.Request.Context())
	if err != nil {
		respond(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Orders fetched successfully", "orders": orders, "count": len(orders)})
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), req.Status, req.PaymentStatus)
	if err != nil {
		respond(c, oc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully", "order": order})
}
