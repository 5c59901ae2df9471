package services

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/yashrajoria/tomeshelf/common/auth"
	apperrors "github.com/yashrajoria/tomeshelf/common/errors"
	"github.com/yashrajoria/tomeshelf/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testAddress() *models.ShippingAddress {
	return &models.ShippingAddress{
		Street:     "221B Baker Street",
		City:       "Mumbai",
		State:      "MH",
		PostalCode: "400001",
		Country:    "IN",
	}
}

type orderFixture struct {
	svc    *OrderService
	orders *fakeOrders
	books  *fakeBooks
	sns    *fakeSNS
	owner  *models.Owner
}

func newOrderFixture(books ...*models.Book) *orderFixture {
	owner := &models.Owner{ID: primitive.NewObjectID(), UserName: "reader1", Email: "r@example.com", Role: models.RoleReader}
	f := &orderFixture{
		orders: newFakeOrders(),
		books:  newFakeBooks(books...),
		sns:    &fakeSNS{},
		owner:  owner,
	}
	events := NewOrderEventPublisher(f.sns, "arn:aws:sns:us-east-1:000000000000:orders", nil)
	f.svc = NewOrderService(f.orders, f.books, newFakeUsers(owner), events, nil, nil)
	return f
}

func TestOrderService_CreateOrderPricesFromCatalog(t *testing.T) {
	b1, b2 := testBook("Dune", 10), testBook("Emma", 3.25)
	f := newOrderFixture(b1, b2)

	order, err := f.svc.CreateOrder(context.Background(), f.owner.ID.Hex(), []OrderItemInput{
		{BookID: b1.ID.Hex(), Quantity: 2},
		{BookID: b2.ID.Hex(), Quantity: 1, Price: ptrMoney(0.01)},
		{BookID: b1.ID.Hex(), Quantity: 1},
	}, testAddress())
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, models.PaymentCOD, order.PaymentMethod)
	require.Len(t, order.Items, 2, "duplicate book ids are merged")
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "3.25", order.Items[1].UnitPrice.String())
	assert.Equal(t, "33.25", order.TotalAmount.String())
}

func ptrMoney(v float64) *models.Money {
	m := models.MoneyFromFloat(v)
	return &m
}

func TestOrderService_CreateOrderValidation(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()
	owner := f.owner.ID.Hex()

	_, err := f.svc.CreateOrder(ctx, owner, nil, testAddress())
	requireKind(t, err, apperrors.KindInvalidArgument)

	addr := testAddress()
	addr.City = ""
	_, err = f.svc.CreateOrder(ctx, owner, []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 1}}, addr)
	requireKind(t, err, apperrors.KindInvalidArgument)
	assert.Contains(t, apperrors.As(err).Message, "city")

	_, err = f.svc.CreateOrder(ctx, owner, []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 1}}, nil)
	requireKind(t, err, apperrors.KindInvalidArgument)

	_, err = f.svc.CreateOrder(ctx, owner, []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 0}}, testAddress())
	requireKind(t, err, apperrors.KindInvalidArgument)

	assert.Zero(t, f.orders.count())
}

func TestOrderService_CreateOrderMissingBookIsAllOrNothing(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	missing := primitive.NewObjectID().Hex()

	_, err := f.svc.CreateOrder(context.Background(), f.owner.ID.Hex(), []OrderItemInput{
		{BookID: b1.ID.Hex(), Quantity: 1},
		{BookID: missing, Quantity: 1},
	}, testAddress())
	requireKind(t, err, apperrors.KindNotFound)
	assert.Equal(t, "Book not found: "+missing, apperrors.As(err).Message)
	assert.Zero(t, f.orders.count())
}

func TestOrderService_PriceFreeze(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.owner.ID.Hex(), []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 2}}, testAddress())
	require.NoError(t, err)

	f.books.setPrice(b1.ID, 50)

	got, err := f.svc.GetOrder(ctx, order.ID.Hex(), auth.Identity{UserID: f.owner.ID.Hex()})
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Items[0].UnitPrice.String())
	assert.Equal(t, "20.00", got.TotalAmount.String())
	require.NotNil(t, got.Items[0].Book)
	assert.Equal(t, "50.00", got.Items[0].Book.Price.String(), "display data reflects the catalog")
}

func TestOrderService_GetOrderOwnership(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.owner.ID.Hex(), []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 1}}, testAddress())
	require.NoError(t, err)

	other := auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleReader}
	_, err = f.svc.GetOrder(ctx, order.ID.Hex(), other)
	requireKind(t, err, apperrors.KindForbidden)
	assert.Equal(t, "Not authorized", apperrors.As(err).Message)

	admin := auth.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleAdmin}
	got, err := f.svc.GetOrder(ctx, order.ID.Hex(), admin)
	require.NoError(t, err)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "reader1", got.Owner.UserName)

	_, err = f.svc.GetOrder(ctx, "bad-id", admin)
	requireKind(t, err, apperrors.KindNotFound)
	_, err = f.svc.GetOrder(ctx, primitive.NewObjectID().Hex(), other)
	requireKind(t, err, apperrors.KindNotFound)
}

func TestOrderService_ListOrdersMostRecentFirst(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()
	items := []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 1}}

	first, err := f.svc.CreateOrder(ctx, f.owner.ID.Hex(), items, testAddress())
	require.NoError(t, err)
	second, err := f.svc.CreateOrder(ctx, f.owner.ID.Hex(), items, testAddress())
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, primitive.NewObjectID().Hex(), items, testAddress())
	require.NoError(t, err)

	mine, err := f.svc.ListOrders(ctx, f.owner.ID.Hex())
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	none, err := f.svc.ListOrders(ctx, primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := f.svc.ListAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.owner.ID.Hex(), []OrderItemInput{{BookID: b1.ID.Hex(), Quantity: 2}}, testAddress())
	require.NoError(t, err)

	paid := "paid"
	updated, err := f.svc.UpdateStatus(ctx, order.ID.Hex(), "Delivered", &paid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, updated.Status)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, order.TotalAmount.String(), updated.TotalAmount.String())
	assert.Equal(t, order.ShippingAddress, updated.ShippingAddress)
	assert.Len(t, updated.Items, 1)

	// transitions are not ordered
	back, err := f.svc.UpdateStatus(ctx, order.ID.Hex(), "pending", nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, back.Status)
	assert.Equal(t, models.PaymentPaid, back.PaymentStatus)

	_, err = f.svc.UpdateStatus(ctx, order.ID.Hex(), "teleported", nil)
	requireKind(t, err, apperrors.KindInvalidArgument)
	bogus := "refunded"
	_, err = f.svc.UpdateStatus(ctx, order.ID.Hex(), "shipped", &bogus)
	requireKind(t, err, apperrors.KindInvalidArgument)
	_, err = f.svc.UpdateStatus(ctx, "nope", "shipped", nil)
	requireKind(t, err, apperrors.KindNotFound)
	_, err = f.svc.UpdateStatus(ctx, primitive.NewObjectID().Hex(), "shipped", nil)
	requireKind(t, err, apperrors.KindNotFound)

	assert.Equal(t, 2, f.sns.count())
	var event OrderEvent
	require.NoError(t, json.Unmarshal(f.sns.messages[0], &event))
	assert.Equal(t, EventOrderStatusUpdated, event.Type)
	assert.Equal(t, order.ID.Hex(), event.OrderID)
}

func TestOrderService_CreatePaidOrderUsesSessionTotal(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()

	session := &models.PaymentSession{
		ID:      "cs_test_paid",
		OwnerID: f.owner.ID,
		LineItems: []models.SessionLineItem{
			{BookID: b1.ID, Name: "Dune", Quantity: 1, UnitPrice: models.MoneyFromFloat(10)},
		},
		ShippingAddress: *testAddress(),
		AmountTotal:     models.MoneyFromFloat(12.5),
	}
	order, err := f.svc.CreatePaidOrder(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, models.PaymentCard, order.PaymentMethod)
	assert.Equal(t, "12.50", order.TotalAmount.String())
	assert.Equal(t, "cs_test_paid", order.PaymentSessionID)

	again, err := f.svc.CreatePaidOrder(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, 1, f.sns.count())
}

func TestOrderService_CreateOrderQuantityBounds(t *testing.T) {
	b1 := testBook("Dune", 10)
	f := newOrderFixture(b1)
	ctx := context.Background()
	owner := f.owner.ID.Hex()

	_, err := f.svc.CreateOrder(ctx, owner, []OrderItemInput{
		{BookID: b1.ID.Hex(), Quantity: math.MaxInt},
		{BookID: b1.ID.Hex(), Quantity: math.MaxInt},
	}, testAddress())
	requireKind(t, err, apperrors.KindInvalidArgument)

	_, err = f.svc.CreateOrder(ctx, owner, []OrderItemInput{
		{BookID: b1.ID.Hex(), Quantity: 500},
		{BookID: b1.ID.Hex(), Quantity: 500},
	}, testAddress())
	requireKind(t, err, apperrors.KindInvalidArgument)
	assert.Zero(t, f.orders.count())

	order, err := f.svc.CreateOrder(ctx, owner, []OrderItemInput{
		{BookID: b1.ID.Hex(), Quantity: 500},
		{BookID: b1.ID.Hex(), Quantity: models.MaxItemQuantity - 500},
	}, testAddress())
	require.NoError(t, err)
	assert.Equal(t, models.MaxItemQuantity, order.Items[0].Quantity)
	assert.Equal(t, "9990.00", order.TotalAmount.String())
}
