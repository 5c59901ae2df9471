package services

import (
	"context"
	"errors"
	"time"

	"github.com/yashrajoria/tomeshelf/common/auth"
	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/database"
	"github.com/yashrajoria/tomeshelf/models"
	awspkg "github.com/yashrajoria/tomeshelf/pkg/aws"
	"github.com/yashrajoria/tomeshelf/repository"

	"go.uber.org/zap"
)

type CheckoutConfig struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	IdempotencyTTL time.Duration
}

// CheckoutService turns a cart into an order, either directly (cash on delivery) or
// through a hosted payment session that is confirmed later.
type CheckoutService struct {
	orders  *OrderService
	carts   *CartService
	users   repository.UserRepository
	gateway PaymentGateway
	tx      database.Transactor
	idem    repository.IdempotencyStore
	cfg     CheckoutConfig
	metrics Counter
	logger  *zap.Logger
}

func NewCheckoutService(
	orders *OrderService,
	carts *CartService,
	users repository.UserRepository,
	gateway PaymentGateway,
	tx database.Transactor,
	idem repository.IdempotencyStore,
	cfg CheckoutConfig,
	metrics Counter,
	logger *zap.Logger,
) *CheckoutService {
	if tx == nil {
		tx = database.SequentialTransactor{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		orders:  orders,
		carts:   carts,
		users:   users,
		gateway: gateway,
		tx:      tx,
		idem:    idem,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// PlaceCodOrder creates a pending order and then empties the owner's cart. The cart is
// untouched when the order cannot be created. A failing cart clear is logged and the
// order is still returned.
//
// With a non-empty idempotencyKey, a replay by the same owner returns the first order and
// replayed is true.
func (s *CheckoutService) PlaceCodOrder(ctx context.Context, ownerID string, items []OrderItemInput, addr *models.ShippingAddress, idempotencyKey string) (order *models.Order, replayed bool, err error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, false, err
	}

	var scopedKey string
	if idempotencyKey != "" && s.idem != nil {
		scopedKey = owner.Hex() + ":" + idempotencyKey
		var existing *models.Order
		existing, err = s.claimKey(ctx, scopedKey, ownerID)
		if existing != nil || err != nil {
			return existing, existing != nil, err
		}
		defer func() {
			s.settleKey(scopedKey, order, err)
		}()
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		created, err := s.orders.CreateOrder(txCtx, ownerID, items, addr)
		if err != nil {
			return err
		}
		order = created

		if err := s.carts.clearAfterOrder(txCtx, owner); err != nil {
			s.logger.Error("Order created but cart clear failed",
				zap.String("order_id", created.ID.Hex()),
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.orders.Announce(ctx, order)
	return s.orders.expandOne(ctx, order), false, nil
}

// claimKey returns the order a completed key points at, reserves a fresh key, or fails
// with Conflict while another request holds it. Store outages disable idempotency for
// the request rather than failing the order.
func (s *CheckoutService) claimKey(ctx context.Context, key, ownerID string) (*models.Order, error) {
	prior, err := s.idem.Get(ctx, key)
	if err == nil && prior == "" {
		var reserved bool
		reserved, err = s.idem.Reserve(ctx, key, s.cfg.IdempotencyTTL)
		if err == nil && reserved {
			return nil, nil
		}
		if err == nil {
			prior, err = s.idem.Get(ctx, key)
		}
	}
	if err != nil {
		s.logger.Warn("Idempotency store unavailable", zap.Error(err))
		return nil, nil
	}

	if prior == "" || prior == repository.PendingMarker {
		return nil, apperrors.Conflict("A request with this Idempotency-Key is already in progress", nil)
	}

	order, err := s.orders.GetOrder(ctx, prior, auth.Identity{UserID: ownerID})
	if err != nil {
		return nil, err
	}
	count(s.metrics, awspkg.MetricIdempotentReplays, nil)
	s.logger.Info("Idempotent order replay", zap.String("order_id", prior))
	return order, nil
}

func (s *CheckoutService) settleKey(key string, order *models.Order, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err != nil || order == nil {
		if relErr := s.idem.Release(ctx, key); relErr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
		return
	}
	if cErr := s.idem.Complete(ctx, key, order.ID.Hex(), s.cfg.IdempotencyTTL); cErr != nil {
		s.logger.Warn("Failed to store idempotency key", zap.Error(cErr))
	}
}

// InitiatePayment opens a hosted checkout session and returns it. Line items are priced
// from the catalog; the whole order payload travels in the session metadata.
func (s *CheckoutService) InitiatePayment(ctx context.Context, ownerID string, items []OrderItemInput, addr *models.ShippingAddress) (*models.PaymentSession, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	if s.users != nil {
		if _, err := s.users.FindByID(ctx, owner); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.Unauthenticated("User authentication required")
			}
			return nil, apperrors.Internal("Failed to load user", err)
		}
	}
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	resolved, err := s.orders.resolveItems(ctx, items)
	if err != nil {
		return nil, err
	}

	lineItems := make([]models.SessionLineItem, 0, len(resolved))
	checkoutItems := make([]CheckoutLineItem, 0, len(resolved))
	total := models.Zero
	for _, r := range resolved {
		lineItems = append(lineItems, models.SessionLineItem{
			BookID:    r.book.ID,
			Name:      r.book.Title,
			Quantity:  r.quantity,
			UnitPrice: r.book.Price,
		})
		checkoutItems = append(checkoutItems, CheckoutLineItem{
			Name:       r.book.Title,
			UnitAmount: r.book.Price.MinorUnits(),
			Quantity:   int64(r.quantity),
		})
		total = total.Add(r.book.Price.Times(r.quantity))
	}

	metadata, err := encodeSessionMetadata(owner, lineItems, *addr)
	if err != nil {
		return nil, err
	}

	successURL := s.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"
	gs, err := s.gateway.CreateSession(ctx, CreateSessionParams{
		OwnerID:    owner.Hex(),
		LineItems:  checkoutItems,
		Currency:   s.cfg.Currency,
		SuccessURL: successURL,
		CancelURL:  s.cfg.CancelURL,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("session_id", gs.ID),
		zap.String("owner_id", owner.Hex()),
	)
	count(s.metrics, awspkg.MetricCheckoutSessions, nil)

	return &models.PaymentSession{
		ID:              gs.ID,
		OwnerID:         owner,
		LineItems:       lineItems,
		ShippingAddress: *addr,
		PaymentStatus:   models.SessionPending,
		AmountTotal:     total,
		Currency:        s.cfg.Currency,
		URL:             gs.URL,
		SuccessRedirect: successURL,
		CancelRedirect:  s.cfg.CancelURL,
	}, nil
}

// ConfirmPayment turns a paid session into a processing order. It is safe to call more
// than once per session: later calls return the first order. A nil requester skips the
// ownership check (server-to-server webhook). The cart is left alone.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, sessionID string, requester *auth.Identity) (*models.Order, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidArgument("Session ID is required")
	}

	existing, err := s.orders.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := checkSessionOwner(existing.OwnerID.Hex(), requester); err != nil {
			return nil, err
		}
		return existing, nil
	}

	gs, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !gs.Paid {
		count(s.metrics, awspkg.MetricPaymentIncomplete, nil)
		return nil, apperrors.PaymentIncomplete("Payment not completed")
	}

	owner, items, addr, err := decodeSessionMetadata(gs.Metadata)
	if err != nil {
		s.logger.Error("Payment session metadata is unusable",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil, err
	}
	if err := checkSessionOwner(owner.Hex(), requester); err != nil {
		return nil, err
	}

	order, err := s.orders.CreatePaidOrder(ctx, &models.PaymentSession{
		ID:              gs.ID,
		OwnerID:         owner,
		LineItems:       items,
		ShippingAddress: addr,
		PaymentStatus:   models.SessionPaid,
		AmountTotal:     models.MoneyFromMinor(gs.AmountTotal),
		Currency:        gs.Currency,
	})
	if err != nil {
		return nil, err
	}
	count(s.metrics, awspkg.MetricPaymentSucceeded, nil)
	return order, nil
}

func checkSessionOwner(ownerHex string, requester *auth.Identity) error {
	if requester == nil || requester.UserID == ownerHex || requester.Role == models.RoleAdmin {
		return nil
	}
	return apperrors.Forbidden()
}

// HandleWebhook verifies a gateway event and confirms completed sessions. Events that
// can never succeed on redelivery are acknowledged; gateway and storage failures are
// returned so the gateway retries.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return apperrors.InvalidArgument("Invalid webhook signature")
	}

	log := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	switch event.Type {
	case WebhookSessionCompleted, WebhookSessionAsyncPaymentSucceed:
	default:
		log.Info("Ignoring webhook event")
		return nil
	}

	order, err := s.ConfirmPayment(ctx, event.SessionID, nil)
	switch {
	case err == nil:
		log.Info("Webhook confirmed payment", zap.String("order_id", order.ID.Hex()))
		return nil
	case apperrors.Is(err, apperrors.KindPaymentIncomplete):
		log.Info("Session not paid yet, waiting for async payment", zap.String("session_id", event.SessionID))
		return nil
	case apperrors.Is(err, apperrors.KindDataIntegrity), apperrors.Is(err, apperrors.KindInvalidArgument), apperrors.Is(err, apperrors.KindNotFound):
		log.Error("Webhook session cannot be confirmed", zap.String("session_id", event.SessionID), zap.Error(err))
		return nil
	default:
		return err
	}
}
