package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yashrajoria/tomeshelf/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrConflict  = errors.New("document was modified concurrently")
	ErrDuplicate = errors.New("duplicate key")
)

// CartRepository persists carts. Only one active cart may exist per owner.
type CartRepository interface {
	FindActive(ctx context.Context, ownerID primitive.ObjectID) (*models.Cart, error)
	// Insert returns ErrDuplicate when the owner already has an active cart.
	Insert(ctx context.Context, cart *models.Cart) error
	// Replace writes cart if its Version still matches the stored one, then bumps it.
	// A mismatch returns ErrConflict.
	Replace(ctx context.Context, cart *models.Cart) error
}

type OrderRepository interface {
	// Create returns ErrDuplicate when an order already references the payment session.
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, payment *models.PaymentStatus) (*models.Order, error)
}

// BookRepository reads the catalog.
type BookRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Book, error)
}

// UserRepository reads registered users.
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Owner, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Owner, error)
}

// IdempotencyStore maps client idempotency keys to the id of the resource they created.
type IdempotencyStore interface {
	// Reserve claims key. It reports false if the key is already claimed or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns "" for unknown keys and PendingMarker while a request holds the key.
	Get(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, resourceID string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

const PendingMarker = "pending"
