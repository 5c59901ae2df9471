package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type SessionPaymentStatus string

const (
	SessionPending SessionPaymentStatus = "pending"
	SessionPaid    SessionPaymentStatus = "paid"
)

// SessionLineItem is one item round-tripped through the gateway's metadata.
type SessionLineItem struct {
	BookID    primitive.ObjectID `json:"bookId"`
	Name      string             `json:"name"`
	Quantity  int                `json:"quantity"`
	UnitPrice Money              `json:"price"`
}

// PaymentSession is a hosted checkout session as seen by this service. The gateway is
// the source of truth; nothing here is persisted.
type PaymentSession struct {
	ID              string
	OwnerID         primitive.ObjectID
	LineItems       []SessionLineItem
	ShippingAddress ShippingAddress
	PaymentStatus   SessionPaymentStatus
	AmountTotal     Money
	Currency        string
	URL             string
	SuccessRedirect string
	CancelRedirect  string
}
