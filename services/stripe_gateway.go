package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/yashrajoria/tomeshelf/common/errors"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

// checkoutSessionAPI is satisfied by the Stripe client's CheckoutSessions.
type checkoutSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway implements PaymentGateway with Stripe Checkout.
type StripeGateway struct {
	sessions      checkoutSessionAPI
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	logger        *zap.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, logger *zap.Logger) *StripeGateway {
	sc := client.New(secretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, webhookSecret, logger)
}

func newStripeGateway(sessions checkoutSessionAPI, webhookSecret string, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &StripeGateway{sessions: sessions, webhookSecret: webhookSecret, logger: logger}
	g.breaker = gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:        "stripe-checkout",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// Client errors (bad session id, invalid params) say nothing about Stripe's health.
		IsSuccessful: func(err error) bool {
			var se *stripe.Error
			if errors.As(err, &se) {
				return se.HTTPStatusCode > 0 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != 429
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

func (g *StripeGateway) CreateSession(ctx context.Context, p CreateSessionParams) (*GatewaySession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		ClientReferenceID:  stripe.String(p.OwnerID),
	}
	params.Context = ctx
	for _, li := range p.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(p.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.sessions.New(params)
	})
	if err != nil {
		return nil, g.mapError("create checkout session", err)
	}
	return fromStripeSession(sess), nil
}

func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (*GatewaySession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.sessions.Get(sessionID, params)
	})
	if err != nil {
		return nil, g.mapError("retrieve checkout session", err)
	}
	return fromStripeSession(sess), nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err == nil {
			out.SessionID = sess.ID
		}
	}
	return out, nil
}

func (g *StripeGateway) mapError(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Upstream("Payment provider is unavailable, please try again later", err)
	}
	var se *stripe.Error
	if errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing {
		return apperrors.NotFound("Payment session not found")
	}
	g.logger.Error("Stripe call failed", zap.String("op", op), zap.Error(err))
	return apperrors.Upstream("Payment provider error", err)
}

func fromStripeSession(s *stripe.CheckoutSession) *GatewaySession {
	return &GatewaySession{
		ID:          s.ID,
		URL:         s.URL,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
		Metadata:    s.Metadata,
	}
}
