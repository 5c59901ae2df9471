package services

import "context"

type CheckoutLineItem struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

type CreateSessionParams struct {
	OwnerID    string
	LineItems  []CheckoutLineItem
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// GatewaySession is a hosted checkout session as reported by the gateway.
type GatewaySession struct {
	ID          string
	URL         string
	Paid        bool
	AmountTotal int64 // minor units
	Currency    string
	Metadata    map[string]string
}

type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

const (
	WebhookSessionCompleted           = "checkout.session.completed"
	WebhookSessionAsyncPaymentSucceed = "checkout.session.async_payment_succeeded"
)

// PaymentGateway creates and reads hosted checkout sessions.
type PaymentGateway interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*GatewaySession, error)
	GetSession(ctx context.Context, sessionID string) (*GatewaySession, error)
	// ParseWebhook verifies the signature header and decodes the event.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
