package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yashrajoria/tomeshelf/models"
	"github.com/yashrajoria/tomeshelf/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeBooks struct {
	mu    sync.Mutex
	books map[primitive.ObjectID]*models.Book
	err   error
}

func newFakeBooks(books ...*models.Book) *fakeBooks {
	f := &fakeBooks{books: map[primitive.ObjectID]*models.Book{}}
	for _, b := range books {
		f.books[b.ID] = b
	}
	return f
}

func (f *fakeBooks) setPrice(id primitive.ObjectID, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.books[id]
	cp.Price = models.MoneyFromFloat(price)
	f.books[id] = &cp
}

func (f *fakeBooks) FindByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBooks) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[primitive.ObjectID]*models.Book{}
	for _, id := range ids {
		if b, ok := f.books[id]; ok {
			cp := *b
			out[id] = &cp
		}
	}
	return out, nil
}

type fakeUsers struct {
	users map[primitive.ObjectID]*models.Owner
}

func newFakeUsers(owners ...*models.Owner) *fakeUsers {
	f := &fakeUsers{users: map[primitive.ObjectID]*models.Owner{}}
	for _, o := range owners {
		f.users[o.ID] = o
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.Owner, error) {
	if o, ok := f.users[id]; ok {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Owner, error) {
	out := map[primitive.ObjectID]*models.Owner{}
	for _, id := range ids {
		if o, ok := f.users[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

// fakeCarts stores deep copies and enforces the version check like the Mongo repository.
type fakeCarts struct {
	mu         sync.Mutex
	carts      map[primitive.ObjectID]*models.Cart
	conflicts  int // next N Replace calls fail with ErrConflict
	replaces   int
	replaceErr error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[primitive.ObjectID]*models.Cart{}}
}

func cloneCart(c *models.Cart) *models.Cart {
	cp := *c
	cp.Items = make([]models.CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	for i := range cp.Items {
		cp.Items[i].Book = nil
	}
	return &cp
}

func (f *fakeCarts) FindActive(_ context.Context, owner primitive.ObjectID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.OwnerID == owner && c.Status == models.CartActive {
			return cloneCart(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCarts) Insert(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.carts {
		if c.OwnerID == cart.OwnerID && c.Status == models.CartActive {
			return repository.ErrDuplicate
		}
	}
	cart.ID = primitive.NewObjectID()
	cart.Version = 1
	f.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (f *fakeCarts) Replace(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	stored, ok := f.carts[cart.ID]
	if !ok {
		return repository.ErrConflict
	}
	if f.conflicts > 0 {
		f.conflicts--
		stored.Version++
		return repository.ErrConflict
	}
	if stored.Version != cart.Version {
		return repository.ErrConflict
	}
	cart.Version++
	f.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (f *fakeCarts) active(owner primitive.ObjectID) *models.Cart {
	c, _ := f.FindActive(context.Background(), owner)
	return c
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    []*models.Order
	createErr error
	clock     time.Time
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = make([]models.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	for i := range cp.Items {
		cp.Items[i].Book = nil
	}
	cp.Owner = nil
	return &cp
}

func (f *fakeOrders) Create(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if order.PaymentSessionID != "" {
		for _, o := range f.orders {
			if o.PaymentSessionID == order.PaymentSessionID {
				return repository.ErrDuplicate
			}
		}
	}
	f.clock = f.clock.Add(time.Minute)
	order.ID = primitive.NewObjectID()
	order.CreatedAt = f.clock
	order.UpdatedAt = f.clock
	f.orders = append(f.orders, cloneOrder(order))
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) FindByPaymentSession(_ context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PaymentSessionID == sessionID {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) filter(keep func(*models.Order) bool) []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeOrders) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Order, error) {
	return f.filter(func(o *models.Order) bool { return o.OwnerID == owner }), nil
}

func (f *fakeOrders) ListAll(_ context.Context) ([]models.Order, error) {
	return f.filter(func(*models.Order) bool { return true }), nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.OrderStatus, payment *models.PaymentStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			o.Status = status
			if payment != nil {
				o.PaymentStatus = *payment
			}
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*GatewaySession
	created  []CreateSessionParams
	err      error
	events   map[string]*WebhookEvent // signature -> event
	seq      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*GatewaySession{}, events: map[string]*WebhookEvent{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, p CreateSessionParams) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	id := "cs_test_" + string(rune('a'+g.seq))
	var total int64
	for _, li := range p.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	md := map[string]string{}
	for k, v := range p.Metadata {
		md[k] = v
	}
	s := &GatewaySession{ID: id, URL: "https://checkout.stripe.test/" + id, AmountTotal: total, Currency: p.Currency, Metadata: md}
	g.sessions[id] = s
	g.created = append(g.created, p)
	return s, nil
}

func (g *fakeGateway) GetSession(_ context.Context, id string) (*GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	cp := *s
	return &cp, nil
}

func (g *fakeGateway) ParseWebhook(_ []byte, signature string) (*WebhookEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.events[signature]
	if !ok {
		return nil, errors.New("bad signature")
	}
	return e, nil
}

func (g *fakeGateway) markPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id].Paid = true
}

type fakeIdem struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{values: map[string]string{}}
}

func (f *fakeIdem) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = repository.PendingMarker
	return true, nil
}

func (f *fakeIdem) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.values[key], nil
}

func (f *fakeIdem) Complete(_ context.Context, key, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = id
	return nil
}

func (f *fakeIdem) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

type fakeSNS struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeSNS) Publish(_ context.Context, _ string, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSNS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}
