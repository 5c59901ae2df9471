package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCheckedOut CartStatus = "checkedOut"
)

// MaxItemQuantity caps the quantity of a single cart or order line.
const MaxItemQuantity = 999

type CartItem struct {
	BookID    primitive.ObjectID `bson:"book_id" json:"bookId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice Money              `bson:"unit_price" json:"unitPrice"`
	Book      *BookSummary       `bson:"-" json:"book,omitempty"`
}

func (i CartItem) Subtotal() Money {
	return i.UnitPrice.Times(i.Quantity)
}

// Cart holds one owner's line items. Version is bumped on every persisted change and is
// used as the optimistic-concurrency token.
type Cart struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitzero"`
	OwnerID     primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	Items       []CartItem         `bson:"items" json:"items"`
	TotalAmount Money              `bson:"total_amount" json:"totalAmount"`
	Status      CartStatus         `bson:"status" json:"status"`
	Version     int64              `bson:"version" json:"-"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt,omitzero"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt,omitzero"`
}

// EmptyCart is the shape returned when an owner has no active cart yet. It is not
// persisted.
func EmptyCart(ownerID primitive.ObjectID) *Cart {
	return &Cart{
		OwnerID:     ownerID,
		Items:       []CartItem{},
		TotalAmount: Zero,
		Status:      CartActive,
	}
}

func (c *Cart) Recalculate() {
	total := Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalAmount = total
}

func (c *Cart) find(bookID primitive.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// AddItem increments an existing line or appends one priced at unitPrice. An existing
// line keeps the price it was added with. It reports false, leaving the cart unchanged,
// when the line would end up outside 1..MaxItemQuantity.
func (c *Cart) AddItem(bookID primitive.ObjectID, quantity int, unitPrice Money) bool {
	if quantity < 1 || quantity > MaxItemQuantity {
		return false
	}
	if i := c.find(bookID); i >= 0 {
		if c.Items[i].Quantity > MaxItemQuantity-quantity {
			return false
		}
		c.Items[i].Quantity += quantity
	} else {
		c.Items = append(c.Items, CartItem{BookID: bookID, Quantity: quantity, UnitPrice: unitPrice})
	}
	c.Recalculate()
	return true
}

// SetQuantity reports false when bookID is not in the cart.
func (c *Cart) SetQuantity(bookID primitive.ObjectID, quantity int) bool {
	i := c.find(bookID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = quantity
	c.Recalculate()
	return true
}

// RemoveItem reports whether anything was removed.
func (c *Cart) RemoveItem(bookID primitive.ObjectID) bool {
	i := c.find(bookID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.Recalculate()
	return true
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Recalculate()
}

func (c *Cart) BookIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.BookID)
	}
	return ids
}
