package models

import (
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]bool{
	OrderPending:    true,
	OrderProcessing: true,
	OrderShipped:    true,
	OrderDelivered:  true,
	OrderCancelled:  true,
}

// ParseOrderStatus accepts any letter case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, orderStatuses[st]
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st == PaymentPaid || st == PaymentUnpaid
}

type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentCard PaymentMethod = "card"
)

type OrderItem struct {
	BookID    primitive.ObjectID `bson:"book_id" json:"bookId"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice Money              `bson:"unit_price" json:"unitPrice"`
	Book      *BookSummary       `bson:"-" json:"book,omitempty"`
}

type ShippingAddress struct {
	Street     string `bson:"street" json:"street" binding:"required"`
	City       string `bson:"city" json:"city" binding:"required"`
	State      string `bson:"state" json:"state" binding:"required"`
	PostalCode string `bson:"postal_code" json:"postalCode" binding:"required"`
	Country    string `bson:"country" json:"country" binding:"required"`
}

// UnmarshalJSON also accepts "pinCode" for the postal code.
func (a *ShippingAddress) UnmarshalJSON(data []byte) error {
	type plain ShippingAddress
	var aux struct {
		plain
		PinCode string `json:"pinCode"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = ShippingAddress(aux.plain)
	if a.PostalCode == "" {
		a.PostalCode = aux.PinCode
	}
	return nil
}

// MissingField returns the JSON name of the first blank field, or "".
func (a *ShippingAddress) MissingField() string {
	if a == nil {
		return "shippingAddress"
	}
	fields := []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

// Order is immutable after creation except for Status and PaymentStatus.
type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID          primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	Items            []OrderItem        `bson:"items" json:"items"`
	TotalAmount      Money              `bson:"total_amount" json:"totalAmount"`
	ShippingAddress  ShippingAddress    `bson:"shipping_address" json:"shippingAddress"`
	Status           OrderStatus        `bson:"status" json:"status"`
	PaymentStatus    PaymentStatus      `bson:"payment_status,omitempty" json:"paymentStatus,omitempty"`
	PaymentMethod    PaymentMethod      `bson:"payment_method" json:"paymentMethod"`
	PaymentSessionID string             `bson:"payment_session_id,omitempty" json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updatedAt"`
	Owner            *OwnerSummary      `bson:"-" json:"owner,omitempty"`
}

func (o *Order) BookIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.BookID)
	}
	return ids
}

// SumItems is Σ unitPrice × quantity over the order's items.
func SumItems(items []OrderItem) Money {
	total := Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Times(item.Quantity))
	}
	return total
}
