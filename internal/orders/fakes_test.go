package orders

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/inventory"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
)

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.Images = slices.Clone(item.Images)
		if item.Size != nil {
			s := *item.Size
			item.Size = &s
		}
		cp.Items[i] = item
	}
	if o.CapturedAt != nil {
		t := *o.CapturedAt
		cp.CapturedAt = &t
	}
	return &cp
}

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*domain.Order)}
}

func (m *memOrders) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *memOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *memOrders) Update(ctx context.Context, id string, patch OrderPatch) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	if patch.IfPaymentStatus != nil && o.PaymentStatus != *patch.IfPaymentStatus {
		return nil, nil
	}
	if patch.IfDeliveryStatus != nil && o.DeliveryStatus != *patch.IfDeliveryStatus {
		return nil, nil
	}
	if patch.IfNotCancelled && o.DeliveryStatus == domain.DeliveryCancelled {
		return nil, nil
	}
	if patch.PaymentStatus != nil {
		o.PaymentStatus = *patch.PaymentStatus
	}
	if patch.DeliveryStatus != nil {
		o.DeliveryStatus = *patch.DeliveryStatus
	}
	if patch.GatewayPaymentID != nil {
		o.GatewayPaymentID = *patch.GatewayPaymentID
	}
	if patch.GatewaySignature != nil {
		o.GatewaySignature = *patch.GatewaySignature
	}
	if patch.CapturedAt != nil {
		t := *patch.CapturedAt
		o.CapturedAt = &t
	}
	if patch.StockCommitted != nil {
		o.StockCommitted = *patch.StockCommitted
	}
	return cloneOrder(o), nil
}

func (m *memOrders) Cancel(ctx context.Context, id string, from domain.DeliveryStatus) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.DeliveryStatus != from {
		return nil, false, nil
	}
	was := o.StockCommitted
	o.DeliveryStatus = domain.DeliveryCancelled
	o.StockCommitted = false
	return cloneOrder(o), was, nil
}

func (m *memOrders) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	all, _ := m.sorted()
	out := []domain.Order{}
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) List(ctx context.Context, limit, offset int) ([]domain.Order, int, error) {
	all, total := m.sorted()
	if offset >= len(all) {
		return []domain.Order{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

func (m *memOrders) sorted() ([]domain.Order, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out)
}

type memStock struct {
	mu     sync.Mutex
	stock  map[string]int
	titles map[string]string
}

func (m *memStock) level(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

func (m *memStock) ReserveAll(ctx context.Context, lines []inventory.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	need := map[string]int{}
	for _, l := range lines {
		need[l.ProductID] += l.Quantity
	}
	for id, qty := range need {
		have, ok := m.stock[id]
		if !ok {
			return inventory.ErrProductNotFound
		}
		if have < qty {
			return &inventory.InsufficientStockError{ProductID: id, Title: m.titles[id], Requested: qty, Remaining: have}
		}
	}
	for id, qty := range need {
		m.stock[id] -= qty
	}
	return nil
}

func (m *memStock) ReleaseAll(ctx context.Context, lines []inventory.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		m.stock[l.ProductID] += l.Quantity
	}
	return nil
}

func (m *memStock) Available(ctx context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	have, ok := m.stock[productID]
	if !ok {
		return 0, inventory.ErrProductNotFound
	}
	return have, nil
}

type memProducts map[string]*domain.Product

func (m memProducts) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p, ok := m[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type memUsers map[string]*domain.User

func (m memUsers) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

type fakeGateway struct {
	secret    string
	createErr error
	calls     []int64
	// echoAmount, when set, replaces the amount the gateway reports back.
	echoAmount int64
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*payment.RemoteOrder, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.calls = append(g.calls, amountMinor)
	echoed := amountMinor
	if g.echoAmount != 0 {
		echoed = g.echoAmount
	}
	return &payment.RemoteOrder{
		GatewayOrderID: "gw_" + receipt,
		Amount:         echoed,
		Currency:       currency,
		Receipt:        receipt,
		Status:         "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) (bool, error) {
	if g.secret == "" {
		return false, payment.ErrGatewayUnavailable
	}
	return payment.VerifySignature(gatewayOrderID, gatewayPaymentID, signature, g.secret), nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (r *recordedEvents) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordedEvents) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var errStoreDown = errors.New("store down")
