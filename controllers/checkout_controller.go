package controllers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/yashrajoria/tomeshelf/common/auth"
	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/common/middleware"
	"github.com/yashrajoria/tomeshelf/models"
	"github.com/yashrajoria/tomeshelf/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stripe signs webhook bodies well under this size.
const maxWebhookBody = 64 << 10

type CheckoutService interface {
	PlaceCodOrder(ctx context.Context, ownerID string, items []services.OrderItemInput, addr *models.ShippingAddress, idempotencyKey string) (*models.Order, bool, error)
	InitiatePayment(ctx context.Context, ownerID string, items []services.OrderItemInput, addr *models.ShippingAddress) (*models.PaymentSession, error)
	ConfirmPayment(ctx context.Context, sessionID string, requester *auth.Identity) (*models.Order, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type CheckoutController struct {
	checkout CheckoutService
	logger   *zap.Logger
}

func NewCheckoutController(checkout CheckoutService, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{checkout: checkout, logger: orNop(logger)}
}

type orderRequest struct {
	Items           []services.OrderItemInput `json:"items" binding:"required,min=1,dive"`
	ShippingAddress *models.ShippingAddress   `json:"shippingAddress" binding:"required"`
}

type confirmRequest struct {
	SessionID string `json:"sessionId"`
}

// CreateOrder places a cash-on-delivery order and empties the cart. A replay with the
// same Idempotency-Key answers 200 with the original order.
func (cc *CheckoutController) CreateOrder(c *gin.Context) {
	var req orderRequest
	if !bindJSON(c, &req) {
		return
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	order, replayed, err := cc.checkout.PlaceCodOrder(c.Request.Context(), middleware.GetUserID(c), req.Items, req.ShippingAddress, key)
	if err != nil {
		respond(c, cc.logger, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"message": "Order created successfully", "order": order})
}

// CreatePaymentSession opens a hosted checkout and returns its redirect URL.
func (cc *CheckoutController) CreatePaymentSession(c *gin.Context) {
	var req orderRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := cc.checkout.InitiatePayment(c.Request.Context(), middleware.GetUserID(c), req.Items, req.ShippingAddress)
	if err != nil {
		respond(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": session.URL, "sessionId": session.ID})
}

// ConfirmOrder converts a paid session into an order for the caller.
func (cc *CheckoutController) ConfirmOrder(c *gin.Context) {
	var req confirmRequest
	if !bindJSON(c, &req) {
		return
	}

	requester := middleware.GetIdentity(c)
	order, err := cc.checkout.ConfirmPayment(c.Request.Context(), strings.TrimSpace(req.SessionID), &requester)
	if err != nil {
		respond(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// StripeWebhook verifies and applies a Stripe event. Non-2xx answers make Stripe retry.
func (cc *CheckoutController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		respond(c, cc.logger, apperrors.InvalidArgument("Invalid webhook payload"))
		return
	}
	if len(payload) > maxWebhookBody {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Webhook payload too large"})
		return
	}

	if err := cc.checkout.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respond(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
