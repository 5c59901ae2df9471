package controllers

import (
	"context"
	"net/http"

	"github.com/yashrajoria/tomeshelf/common/middleware"
	"github.com/yashrajoria/tomeshelf/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CartService is the part of services.CartService the handlers use.
type CartService interface {
	GetActiveCart(ctx context.Context, ownerID string) (*models.Cart, error)
	AddItem(ctx context.Context, ownerID, bookID string, quantity int) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, ownerID, bookID string, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, ownerID, bookID string) (*models.Cart, error)
	ClearCart(ctx context.Context, ownerID string) (*models.Cart, error)
	Checkout(ctx context.Context, ownerID string) (*models.Cart, error)
}

type CartController struct {
	carts  CartService
	logger *zap.Logger
}

func NewCartController(carts CartService, logger *zap.Logger) *CartController {
	return &CartController{carts: carts, logger: orNop(logger)}
}

type addItemRequest struct {
	BookID   string `json:"bookId"`
	Quantity *int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (cc *CartController) reply(c *gin.Context, message string, cart *models.Cart, err error) {
	if err != nil {
		respond(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "cart": cart})
}

// GetCart returns the caller's active cart, or an empty one.
func (cc *CartController) GetCart(c *gin.Context) {
	cart, err := cc.carts.GetActiveCart(c.Request.Context(), middleware.GetUserID(c))
	cc.reply(c, "Cart fetched successfully", cart, err)
}

// AddItem adds a book to the cart. Quantity defaults to 1.
func (cc *CartController) AddItem(c *gin.Context) {
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := cc.carts.AddItem(c.Request.Context(), middleware.GetUserID(c), req.BookID, quantity)
	cc.reply(c, "Item added to cart successfully", cart, err)
}

func (cc *CartController) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := cc.carts.UpdateItemQuantity(c.Request.Context(), middleware.GetUserID(c), c.Param("bookId"), req.Quantity)
	cc.reply(c, "Cart item updated successfully", cart, err)
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	cart, err := cc.carts.RemoveItem(c.Request.Context(), middleware.GetUserID(c), c.Param("bookId"))
	cc.reply(c, "Item removed from cart", cart, err)
}

func (cc *CartController) ClearCart(c *gin.Context) {
	cart, err := cc.carts.ClearCart(c.Request.Context(), middleware.GetUserID(c))
	cc.reply(c, "Cart cleared successfully", cart, err)
}

// Checkout marks the active cart as checked out without creating an order.
func (cc *CartController) Checkout(c *gin.Context) {
	cart, err := cc.carts.Checkout(c.Request.Context(), middleware.GetUserID(c))
	cc.reply(c, "Cart checked out successfully", cart, err)
}
