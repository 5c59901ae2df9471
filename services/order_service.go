package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/tomeshelf/common/auth"
	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/models"
	awspkg "github.com/yashrajoria/tomeshelf/pkg/aws"
	"github.com/yashrajoria/tomeshelf/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OrderItemInput is one requested line. Name and Price are accepted for compatibility
// with the storefront but prices always come from the catalog.
type OrderItemInput struct {
	BookID   string        `json:"bookId" binding:"required"`
	Quantity int           `json:"quantity" binding:"required,min=1,max=999"`
	Name     string        `json:"name,omitempty"`
	Price    *models.Money `json:"price,omitempty"`
}

type OrderService struct {
	orders  repository.OrderRepository
	books   repository.BookRepository
	users   repository.UserRepository
	events  *OrderEventPublisher
	metrics Counter
	logger  *zap.Logger
}

func NewOrderService(orders repository.OrderRepository, books repository.BookRepository, users repository.UserRepository, events *OrderEventPublisher, metrics Counter, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:  orders,
		books:   books,
		users:   users,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

type resolvedItem struct {
	book     *models.Book
	quantity int
}

// resolveItems validates the requested lines, merges duplicate book ids and loads each
// book. The first missing book (in request order) fails the whole request.
func (s *OrderService) resolveItems(ctx context.Context, items []OrderItemInput) ([]resolvedItem, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidArgument("At least one item is required")
	}

	ids := make([]primitive.ObjectID, 0, len(items))
	raw := make(map[primitive.ObjectID]string, len(items))
	quantities := make(map[primitive.ObjectID]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > models.MaxItemQuantity {
			return nil, apperrors.InvalidArgument("Quantity must be between 1 and %d for book %s", models.MaxItemQuantity, item.BookID)
		}
		id, err := bookObjectID(item.BookID)
		if err != nil {
			return nil, err
		}
		if quantities[id] > models.MaxItemQuantity-item.Quantity {
			return nil, apperrors.InvalidArgument("Quantity for book %s cannot exceed %d", item.BookID, models.MaxItemQuantity)
		}
		if _, seen := quantities[id]; !seen {
			ids = append(ids, id)
			raw[id] = item.BookID
		}
		quantities[id] += item.Quantity
	}

	books, err := s.books.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Internal("Failed to load books", err)
	}

	resolved := make([]resolvedItem, 0, len(ids))
	for _, id := range ids {
		book, ok := books[id]
		if !ok {
			return nil, apperrors.NotFound("Book not found: %s", raw[id])
		}
		resolved = append(resolved, resolvedItem{book: book, quantity: quantities[id]})
	}
	return resolved, nil
}

func validateAddress(addr *models.ShippingAddress) error {
	if field := addr.MissingField(); field != "" {
		if field == "shippingAddress" {
			return apperrors.InvalidArgument("Shipping address is required")
		}
		return apperrors.InvalidArgument("Shipping address %s is required", field)
	}
	return nil
}

// CreateOrder persists a pending cash-on-delivery order priced from the current catalog.
// It does not publish events; callers announce the order once their unit of work commits.
func (s *OrderService) CreateOrder(ctx context.Context, ownerID string, items []OrderItemInput, addr *models.ShippingAddress) (*models.Order, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	resolved, err := s.resolveItems(ctx, items)
	if err != nil {
		return nil, err
	}

	orderItems := make([]models.OrderItem, 0, len(resolved))
	for _, r := range resolved {
		orderItems = append(orderItems, models.OrderItem{
			BookID:    r.book.ID,
			Name:      r.book.Title,
			Quantity:  r.quantity,
			UnitPrice: r.book.Price,
		})
	}

	order := &models.Order{
		OwnerID:         owner,
		Items:           orderItems,
		TotalAmount:     models.SumItems(orderItems),
		ShippingAddress: *addr,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentUnpaid,
		PaymentMethod:   models.PaymentCOD,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.Internal("Failed to create order", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("owner_id", owner.Hex()),
		zap.String("total", order.TotalAmount.String()),
	)
	return order, nil
}

// Announce publishes the created event and metric for an order that is durably stored.
func (s *OrderService) Announce(ctx context.Context, order *models.Order) {
	s.events.Publish(ctx, EventOrderCreated, order)
	count(s.metrics, awspkg.MetricOrdersCreated, map[string]string{"PaymentMethod": string(order.PaymentMethod)})
}

// CreatePaidOrder records a gateway-confirmed payment. Items, unit prices and the total
// come from the session, never from the current catalog. A second call for the same
// session returns the order created by the first.
func (s *OrderService) CreatePaidOrder(ctx context.Context, session *models.PaymentSession) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(session.LineItems))
	for _, li := range session.LineItems {
		items = append(items, models.OrderItem{
			BookID:    li.BookID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}

	order := &models.Order{
		OwnerID:          session.OwnerID,
		Items:            items,
		TotalAmount:      session.AmountTotal,
		ShippingAddress:  session.ShippingAddress,
		Status:           models.OrderProcessing,
		PaymentStatus:    models.PaymentPaid,
		PaymentMethod:    models.PaymentCard,
		PaymentSessionID: session.ID,
	}

	err := s.orders.Create(ctx, order)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, findErr := s.orders.FindByPaymentSession(ctx, session.ID)
		if findErr != nil {
			return nil, apperrors.Internal("Failed to load order", findErr)
		}
		s.logger.Info("Payment session already confirmed", zap.String("session_id", session.ID))
		return s.expandOne(ctx, existing), nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to create order", err)
	}

	if sum := models.SumItems(items); !sum.Equal(order.TotalAmount) {
		s.logger.Warn("Gateway total differs from line items",
			zap.String("session_id", session.ID),
			zap.String("gateway_total", order.TotalAmount.String()),
			zap.String("items_total", sum.String()),
		)
		count(s.metrics, awspkg.MetricPaymentMismatch, nil)
	}

	s.logger.Info("Paid order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("session_id", session.ID),
	)
	s.Announce(ctx, order)
	return s.expandOne(ctx, order), nil
}

// FindBySession returns the order created for a payment session, or nil.
func (s *OrderService) FindBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	order, err := s.orders.FindByPaymentSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load order", err)
	}
	return s.expandOne(ctx, order), nil
}

// GetOrder returns the order if the requester owns it or is an admin. Ownership is only
// checked after the order exists.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, requester auth.Identity) (*models.Order, error) {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, apperrors.NotFound("Order not found")
	}

	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch order", err)
	}

	if order.OwnerID.Hex() != requester.UserID && requester.Role != models.RoleAdmin {
		return nil, apperrors.Forbidden()
	}
	return s.expandOne(ctx, order), nil
}

// ListOrders returns the owner's orders, most recent first.
func (s *OrderService) ListOrders(ctx context.Context, ownerID string) ([]models.Order, error) {
	owner, err := ownerObjectID(ownerID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByOwner(ctx, owner)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch orders", err)
	}
	return s.expand(ctx, orders), nil
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, apperrors.Internal("Failed to fetch orders", err)
	}
	return s.expand(ctx, orders), nil
}

// UpdateStatus sets the order status, and optionally its payment status. Any status may
// follow any other.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string, paymentStatus *string) (*models.Order, error) {
	newStatus, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, apperrors.InvalidArgument("Invalid status: %s", status)
	}
	var payment *models.PaymentStatus
	if paymentStatus != nil {
		ps, ok := models.ParsePaymentStatus(*paymentStatus)
		if !ok {
			return nil, apperrors.InvalidArgument("Invalid payment status: %s", *paymentStatus)
		}
		payment = &ps
	}

	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, apperrors.NotFound("Order not found")
	}

	order, err := s.orders.UpdateStatus(ctx, id, newStatus, payment)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to update order", err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(newStatus)),
	)
	s.events.Publish(ctx, EventOrderStatusUpdated, order)
	count(s.metrics, awspkg.MetricOrderStatusChanged, map[string]string{"Status": string(newStatus)})
	return s.expandOne(ctx, order), nil
}

func (s *OrderService) expandOne(ctx context.Context, order *models.Order) *models.Order {
	expanded := s.expand(ctx, []models.Order{*order})
	return &expanded[0]
}

// expand attaches book and owner summaries. Lookup failures are logged and leave the
// orders unexpanded.
func (s *OrderService) expand(ctx context.Context, orders []models.Order) []models.Order {
	if len(orders) == 0 {
		return orders
	}

	var bookIDs, ownerIDs []primitive.ObjectID
	for _, o := range orders {
		bookIDs = append(bookIDs, o.BookIDs()...)
		ownerIDs = append(ownerIDs, o.OwnerID)
	}

	books, err := s.books.FindByIDs(ctx, bookIDs)
	if err != nil {
		s.logger.Warn("Failed to expand order books", zap.Error(err))
		books = nil
	}
	var owners map[primitive.ObjectID]*models.Owner
	if s.users != nil {
		if owners, err = s.users.FindByIDs(ctx, ownerIDs); err != nil {
			s.logger.Warn("Failed to expand order owners", zap.Error(err))
		}
	}

	for i := range orders {
		for j := range orders[i].Items {
			if b, ok := books[orders[i].Items[j].BookID]; ok {
				orders[i].Items[j].Book = b.Summary()
			}
		}
		if o, ok := owners[orders[i].OwnerID]; ok {
			orders[i].Owner = o.Summary()
		}
	}
	return orders
}
