package services

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/models"
	awspkg "github.com/yashrajoria/tomeshelf/pkg/aws"
	"github.com/yashrajoria/tomeshelf/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// cartWriteAttempts bounds the reload-and-retry loop on version conflicts.
const cartWriteAttempts = 3

type CartService struct {
	carts   repository.CartRepository
	books   repository.BookRepository
	metrics Counter
	logger  *zap.Logger
}

func NewCartService(carts repository.CartRepository, books repository.BookRepository, metrics Counter, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{carts: carts, books: books, metrics: metrics, logger: logger}
}

// mutation edits a loaded cart and reports whether it changed.
type mutation func(cart *models.Cart) (bool, error)

// mutate loads the owner's active cart, applies fn and writes it back guarded by the cart
// version. When create is set a missing cart is started empty.
func (s *CartService) mutate(ctx context.Context, owner primitive.ObjectID, create bool, fn mutation) (*models.Cart, error) {
	for attempt := 1; attempt <= cartWriteAttempts; attempt++ {
		cart, err := s.carts.FindActive(ctx, owner)
		isNew := false
		switch {
		case errors.Is(err, repository.ErrNotFound):
			if !create {
				return nil, apperrors.NotFound("Cart not found")
			}
			cart, isNew = models.EmptyCart(owner), true
		case err != nil:
			return nil, apperrors.Internal("Failed to load cart", err)
		}

		changed, err := fn(cart)
		if err != nil {
			return nil, err
		}
		if !changed && !isNew {
			return cart, nil
		}

		if isNew {
			err = s.carts.Insert(ctx, cart)
		} else {
			err = s.carts.Replace(ctx, cart)
		}
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrConflict) && !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Internal("Failed to save cart", err)
		}
		s.logger.Debug("Cart write conflict, retrying",
			zap.String("owner_id", owner.Hex()),
			zap.Int("attempt", attempt),
		)
	}
	return nil, apperrors.Conflict("Cart was modified concurrently, please retry", repository.ErrConflict)
}

// AddItem puts quantity copies of bookID into the owner's active cart, creating the cart
// on first use. New lines are priced from the catalog at this instant.
func (s *CartService) AddItem(ctx context.Context, ownerID, bookID string, quantity int) (*models.Cart, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(bookID) == "" {
		return nil, apperrors.InvalidArgument("Book ID is required")
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	bid, err := bookObjectID(bookID)
	if err != nil {
		return nil, err
	}

	book, err := s.books.FindByID(ctx, bid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Book not found: %s", bookID)
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load book", err)
	}

	cart, err := s.mutate(ctx, owner, true, func(c *models.Cart) (bool, error) {
		if !c.AddItem(bid, quantity, book.Price) {
			return false, apperrors.InvalidArgument("Quantity for book %s cannot exceed %d", bookID, models.MaxItemQuantity)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, cart), nil
}

// GetActiveCart returns the active cart, or the empty shape when the owner has none.
func (s *CartService) GetActiveCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	cart, err := s.carts.FindActive(ctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return models.EmptyCart(owner), nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load cart", err)
	}
	return s.expand(ctx, cart), nil
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, ownerID, bookID string, quantity int) (*models.Cart, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	bid, bidErr := primitive.ObjectIDFromHex(bookID)

	cart, err := s.mutate(ctx, owner, false, func(c *models.Cart) (bool, error) {
		if bidErr != nil || !c.SetQuantity(bid, quantity) {
			return false, apperrors.NotFound("Item not found in cart: %s", bookID)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, cart), nil
}

// RemoveItem is idempotent: removing an absent book leaves the cart untouched.
func (s *CartService) RemoveItem(ctx context.Context, ownerID, bookID string) (*models.Cart, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	bid, bidErr := primitive.ObjectIDFromHex(bookID)

	cart, err := s.mutate(ctx, owner, false, func(c *models.Cart) (bool, error) {
		if bidErr != nil {
			return false, nil
		}
		return c.RemoveItem(bid), nil
	})
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, cart), nil
}

func (s *CartService) ClearCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, false, func(c *models.Cart) (bool, error) {
		if len(c.Items) == 0 && c.TotalAmount.IsZero() {
			return false, nil
		}
		c.Clear()
		return true, nil
	})
}

// clearAfterOrder empties the cart once an order exists. A missing cart is not an error.
func (s *CartService) clearAfterOrder(ctx context.Context, owner primitive.ObjectID) error {
	_, err := s.ClearCart(ctx, owner.Hex())
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil
	}
	return err
}

// Checkout moves the active cart to CheckedOut. The owner's next add starts a new cart.
func (s *CartService) Checkout(ctx context.Context, ownerID string) (*models.Cart, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	cart, err := s.mutate(ctx, owner, false, func(c *models.Cart) (bool, error) {
		c.Status = models.CartCheckedOut
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	count(s.metrics, awspkg.MetricCartCheckouts, nil)
	return s.expand(ctx, cart), nil
}

// expand attaches book summaries for display. Lookup failures leave items unexpanded.
func (s *CartService) expand(ctx context.Context, cart *models.Cart) *models.Cart {
	if len(cart.Items) == 0 {
		return cart
	}
	books, err := s.books.FindByIDs(ctx, cart.BookIDs())
	if err != nil {
		s.logger.Warn("Failed to expand cart books", zap.String("cart_id", cart.ID.Hex()), zap.Error(err))
		return cart
	}
	for i := range cart.Items {
		if b, ok := books[cart.Items[i].BookID]; ok {
			cart.Items[i].Book = b.Summary()
		}
	}
	return cart
}
