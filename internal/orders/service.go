package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/inventory"
	"github.com/joao-fontenele/storefront-checkout/internal/logging"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/snapshot"
)

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, id string, patch OrderPatch) (*domain.Order, error)
	Cancel(ctx context.Context, id string, from domain.DeliveryStatus) (*domain.Order, bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, limit, offset int) ([]domain.Order, int, error)
}

type StockLedger interface {
	ReserveAll(ctx context.Context, lines []inventory.Line) error
	ReleaseAll(ctx context.Context, lines []inventory.Line) error
	Available(ctx context.Context, productID string) (int, error)
}

type ProductFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Product, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error
}

type Dependencies struct {
	Orders   OrderStore
	Stock    StockLedger
	Products ProductFinder
	Users    UserFinder
	Gateway  payment.Gateway
	// Events may be nil; lifecycle events are then not published.
	Events   EventPublisher
	Currency string
	Now      func() time.Time
}

type Service struct {
	orders   OrderStore
	stock    StockLedger
	products ProductFinder
	users    UserFinder
	gateway  payment.Gateway
	events   EventPublisher
	currency string
	now      func() time.Time

	created             metric.Int64Counter
	verified            metric.Int64Counter
	reservationFailures metric.Int64Counter
	cancelled           metric.Int64Counter
}

func NewService(deps Dependencies) (*Service, error) {
	meter := otel.Meter("orders")

	created, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders created"))
	if err != nil {
		return nil, err
	}
	verified, err := meter.Int64Counter("orders.payments.verified", metric.WithDescription("Gateway payment verifications by result"))
	if err != nil {
		return nil, err
	}
	reservationFailures, err := meter.Int64Counter("orders.stock.reservation_failures", metric.WithDescription("Stock reservations rejected for insufficient stock"))
	if err != nil {
		return nil, err
	}
	cancelled, err := meter.Int64Counter("orders.cancelled", metric.WithDescription("Orders cancelled"))
	if err != nil {
		return nil, err
	}

	s := &Service{
		orders:              deps.Orders,
		stock:               deps.Stock,
		products:            deps.Products,
		users:               deps.Users,
		gateway:             deps.Gateway,
		events:              deps.Events,
		currency:            deps.Currency,
		now:                 deps.Now,
		created:             created,
		verified:            verified,
		reservationFailures: reservationFailures,
		cancelled:           cancelled,
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	return s, nil
}

type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

// CreateOrderInput describes a checkout. Total is the declared order total;
// when absent it is derived from the snapshot subtotal and the breakdown
// fields.
type CreateOrderInput struct {
	UserID         string           `json:"user_id"`
	Items          []LineInput      `json:"items"`
	Address        domain.Address   `json:"address"`
	ShippingCharge decimal.Decimal  `json:"shipping_charge"`
	Tax            decimal.Decimal  `json:"tax"`
	Discount       decimal.Decimal  `json:"discount"`
	CouponCode     string           `json:"coupon_code,omitempty"`
	Total          *decimal.Decimal `json:"total,omitempty"`
}

type VerifyPaymentInput struct {
	OrderID          string `json:"-"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

type UpdateOrderInput struct {
	DeliveryStatus *domain.DeliveryStatus
	PaymentStatus  *domain.PaymentStatus
}

// CheckoutSession is what the client needs to open the gateway's payment
// form for a freshly created gateway order.
type CheckoutSession struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type OrderPage struct {
	Orders []domain.Order `json:"orders"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Size   int            `json:"size"`
}

// CreateCashOnDeliveryOrder reserves stock for every line before the order
// is written. Either all lines are reserved and the order exists, or
// nothing changed.
func (s *Service) CreateCashOnDeliveryOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	logger := logging.FromContext(ctx)

	order, err := s.prepare(ctx, in, domain.PaymentModeCOD)
	if err != nil {
		return nil, err
	}

	lines := linesOf(order.Items)
	if err := s.stock.ReserveAll(ctx, lines); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			s.reservationFailures.Add(ctx, 1)
		}
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	order.StockCommitted = true

	if err := s.orders.Create(ctx, order); err != nil {
		if rerr := s.stock.ReleaseAll(ctx, lines); rerr != nil {
			logger.ErrorContext(ctx, "failed to release stock after order persist failure",
				"error", rerr, "order_id", order.ID, "lines", lines)
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_mode", string(order.PaymentMode))))
	s.publish(ctx, domain.EventOrderCreated, order)

	logger.InfoContext(ctx, "cod order created", "order_id", order.ID, "user_id", order.UserID, "final_amount", order.FinalAmount.String())
	return order, nil
}

// CreateGatewayOrder checks stock without reserving it, opens a payment
// order with the gateway and records the local order as pending.
func (s *Service) CreateGatewayOrder(ctx context.Context, in CreateOrderInput) (*CheckoutSession, error) {
	if s.gateway == nil {
		return nil, payment.ErrGatewayUnavailable
	}

	order, err := s.prepare(ctx, in, domain.PaymentModeGateway)
	if err != nil {
		return nil, err
	}

	for _, line := range mergeLines(order.Items) {
		available, err := s.stock.Available(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("check stock: %w", err)
		}
		if available < line.Quantity {
			s.reservationFailures.Add(ctx, 1)
			return nil, &inventory.InsufficientStockError{
				ProductID: line.ProductID,
				Title:     titleOf(order.Items, line.ProductID),
				Requested: line.Quantity,
				Remaining: available,
			}
		}
	}

	amount, err := payment.ToMinorUnits(order.FinalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: final amount %s: %v", ErrValidation, order.FinalAmount, err)
	}

	remote, err := s.gateway.CreateOrder(ctx, amount, order.Currency, order.ID)
	if err != nil {
		return nil, err
	}
	if remote.Amount != amount {
		return nil, fmt.Errorf("%w: gateway order %s is for %s, expected %s",
			payment.ErrGateway, remote.GatewayOrderID,
			payment.FromMinorUnits(remote.Amount).StringFixed(2), payment.FromMinorUnits(amount).StringFixed(2))
	}
	order.GatewayOrderID = remote.GatewayOrderID

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_mode", string(order.PaymentMode))))
	s.publish(ctx, domain.EventOrderCreated, order)

	logging.FromContext(ctx).InfoContext(ctx, "gateway order created",
		"order_id", order.ID, "gateway_order_id", order.GatewayOrderID, "amount", amount)

	currency := remote.Currency
	if currency == "" {
		currency = order.Currency
	}
	return &CheckoutSession{
		OrderID:        order.ID,
		GatewayOrderID: remote.GatewayOrderID,
		Amount:         amount,
		Currency:       currency,
	}, nil
}

// VerifyGatewayPayment checks the receipt signature and, when it is
// genuine, commits the order's stock and marks it paid. A forged receipt
// marks the payment failed and leaves stock alone.
func (s *Service) VerifyGatewayPayment(ctx context.Context, in VerifyPaymentInput) (*domain.Order, error) {
	logger := logging.FromContext(ctx)

	if in.OrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return nil, fmt.Errorf("%w: order id, gateway payment id and signature are required", ErrValidation)
	}
	if s.gateway == nil {
		return nil, payment.ErrGatewayUnavailable
	}

	order, err := s.getOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMode != domain.PaymentModeGateway {
		return nil, fmt.Errorf("%w: order %s is not a gateway order", ErrValidation, order.ID)
	}

	valid, err := s.gateway.VerifySignature(order.GatewayOrderID, in.GatewayPaymentID, in.Signature)
	if err != nil {
		return nil, err
	}
	if in.GatewayOrderID != "" && in.GatewayOrderID != order.GatewayOrderID {
		valid = false
	}

	if order.PaymentStatus == domain.PaymentPaid && valid && order.GatewayPaymentID == in.GatewayPaymentID {
		return order, nil
	}
	if err := domain.ValidatePaymentTransition(order.PaymentStatus, domain.PaymentPaid); err != nil {
		return nil, err
	}

	if !valid {
		s.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "mismatch")))
		failed := domain.PaymentFailed
		pending := domain.PaymentPending
		updated, err := s.orders.Update(ctx, order.ID, OrderPatch{PaymentStatus: &failed, IfPaymentStatus: &pending})
		if err != nil {
			return nil, fmt.Errorf("mark payment failed: %w", err)
		}
		if updated != nil {
			s.publish(ctx, domain.EventOrderPaymentFailed, updated)
		}
		logger.WarnContext(ctx, "payment signature mismatch", "order_id", order.ID, "gateway_payment_id", in.GatewayPaymentID)
		return nil, ErrSignatureMismatch
	}

	lines := linesOf(order.Items)
	if err := s.stock.ReserveAll(ctx, lines); err != nil {
		s.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "stock_unavailable")))
		if errors.Is(err, inventory.ErrInsufficientStock) {
			s.reservationFailures.Add(ctx, 1)
		}
		logger.ErrorContext(ctx, "payment captured but stock could not be committed, refund required",
			"error", err, "order_id", order.ID, "gateway_payment_id", in.GatewayPaymentID)
		return nil, fmt.Errorf("commit stock for paid order: %w", err)
	}

	paid := domain.PaymentPaid
	pending := domain.PaymentPending
	capturedAt := s.now()
	committed := true
	updated, err := s.orders.Update(ctx, order.ID, OrderPatch{
		PaymentStatus:    &paid,
		GatewayPaymentID: &in.GatewayPaymentID,
		GatewaySignature: &in.Signature,
		CapturedAt:       &capturedAt,
		StockCommitted:   &committed,
		IfPaymentStatus:  &pending,
		IfNotCancelled:   true,
	})
	if err != nil || updated == nil {
		if rerr := s.stock.ReleaseAll(ctx, lines); rerr != nil {
			logger.ErrorContext(ctx, "failed to release stock after losing payment update",
				"error", rerr, "order_id", order.ID, "lines", lines)
		}
		if err != nil {
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
		return nil, fmt.Errorf("%w: order %s changed during verification", domain.ErrInvalidTransition, order.ID)
	}

	s.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "paid")))
	s.publish(ctx, domain.EventOrderPaid, updated)

	logger.InfoContext(ctx, "payment verified", "order_id", updated.ID, "gateway_payment_id", updated.GatewayPaymentID)
	return updated, nil
}

// CancelOrder cancels the order and restores stock when the order had
// committed any. Cancelling a cancelled order returns it unchanged.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, order)
}

func (s *Service) cancel(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	logger := logging.FromContext(ctx)

	if order.DeliveryStatus == domain.DeliveryCancelled {
		return order, nil
	}
	if err := domain.ValidateDeliveryTransition(order.DeliveryStatus, domain.DeliveryCancelled); err != nil {
		return nil, err
	}

	updated, wasCommitted, err := s.orders.Cancel(ctx, order.ID, order.DeliveryStatus)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		current, err := s.getOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.DeliveryStatus == domain.DeliveryCancelled {
			return current, nil
		}
		return nil, fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
	}

	if wasCommitted {
		lines := linesOf(updated.Items)
		if err := s.stock.ReleaseAll(ctx, lines); err != nil {
			logger.ErrorContext(ctx, "order cancelled but stock was not restored",
				"error", err, "order_id", updated.ID, "lines", lines)
			return nil, fmt.Errorf("release stock: %w", err)
		}
	}

	s.cancelled.Add(ctx, 1)
	s.publish(ctx, domain.EventOrderCancelled, updated)

	logger.InfoContext(ctx, "order cancelled", "order_id", updated.ID, "stock_released", wasCommitted)
	return updated, nil
}

// UpdateOrder applies administrative status changes. Both changes are
// validated before either is written; a delivery change to cancelled goes
// through the same path as CancelOrder.
func (s *Service) UpdateOrder(ctx context.Context, orderID string, in UpdateOrderInput) (*domain.Order, error) {
	if in.DeliveryStatus == nil && in.PaymentStatus == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	changePayment := in.PaymentStatus != nil && *in.PaymentStatus != order.PaymentStatus
	changeDelivery := in.DeliveryStatus != nil && *in.DeliveryStatus != order.DeliveryStatus

	if changePayment {
		if err := domain.ValidatePaymentTransition(order.PaymentStatus, *in.PaymentStatus); err != nil {
			return nil, err
		}
		if *in.PaymentStatus == domain.PaymentPaid && order.PaymentMode != domain.PaymentModeCOD {
			return nil, fmt.Errorf("%w: gateway orders are paid by payment verification", domain.ErrInvalidTransition)
		}
	}
	if changeDelivery {
		if err := domain.ValidateDeliveryTransition(order.DeliveryStatus, *in.DeliveryStatus); err != nil {
			return nil, err
		}
	}

	if changePayment {
		from := order.PaymentStatus
		updated, err := s.orders.Update(ctx, order.ID, OrderPatch{PaymentStatus: in.PaymentStatus, IfPaymentStatus: &from})
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
		}
		order = updated

		event := domain.EventOrderStatusChanged
		if order.PaymentStatus == domain.PaymentRefunded {
			event = domain.EventOrderRefunded
		}
		s.publish(ctx, event, order)
	}

	if changeDelivery {
		if *in.DeliveryStatus == domain.DeliveryCancelled {
			return s.cancel(ctx, order)
		}

		from := order.DeliveryStatus
		updated, err := s.orders.Update(ctx, order.ID, OrderPatch{DeliveryStatus: in.DeliveryStatus, IfDeliveryStatus: &from})
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidTransition, order.ID)
		}
		order = updated
		s.publish(ctx, domain.EventOrderStatusChanged, order)
	}

	logging.FromContext(ctx).InfoContext(ctx, "order updated",
		"order_id", order.ID, "status", order.DeliveryStatus, "payment_status", order.PaymentStatus)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.getOrder(ctx, orderID)
}

func (s *Service) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.orders.ListByUser(ctx, userID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// quantities are stored in INTEGER columns
	maxLineQuantity = math.MaxInt32
)

func (s *Service) ListOrders(ctx context.Context, page, size int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	orders, total, err := s.orders.List(ctx, size, (page-1)*size)
	if err != nil {
		return nil, err
	}

	return &OrderPage{Orders: orders, Total: total, Page: page, Size: size}, nil
}

func (s *Service) getOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

// prepare validates the input, resolves the customer and products and
// builds the unsaved order with its item snapshots.
func (s *Service) prepare(ctx context.Context, in CreateOrderInput, mode domain.PaymentMode) (*domain.Order, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, in.UserID)
	}

	products := make(map[string]*domain.Product, len(in.Items))
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, line := range in.Items {
		product, ok := products[line.ProductID]
		if !ok {
			product, err = s.products.FindByID(ctx, line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("find product: %w", err)
			}
			if product == nil {
				return nil, fmt.Errorf("%w: product %s", ErrNotFound, line.ProductID)
			}
			products[line.ProductID] = product
		}

		var size *domain.Size
		if line.Size != "" {
			parsed, _ := domain.ParseSize(line.Size)
			size = &parsed
		}

		items = append(items, snapshot.Build(*product, line.Quantity, size))
	}

	subtotal := snapshot.Subtotal(items)
	total := subtotal.Add(in.ShippingCharge).Add(in.Tax).Sub(in.Discount)
	if in.Total != nil {
		total = *in.Total
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: total must not be negative", ErrValidation)
	}

	return &domain.Order{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		CustomerName:   user.Name,
		CustomerEmail:  user.Email,
		Items:          items,
		Address:        in.Address,
		Subtotal:       subtotal,
		ShippingCharge: in.ShippingCharge,
		Tax:            in.Tax,
		Discount:       in.Discount,
		CouponCode:     in.CouponCode,
		Total:          total,
		FinalAmount:    total,
		Currency:       s.currency,
		DeliveryStatus: domain.DeliveryPending,
		PaymentMode:    mode,
		PaymentStatus:  domain.PaymentPending,
		CreatedAt:      s.now(),
	}, nil
}

func validateCreate(in CreateOrderInput) error {
	var problems []string

	if in.UserID == "" {
		problems = append(problems, "user id is required")
	}
	if len(in.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}
	for i, line := range in.Items {
		if line.ProductID == "" {
			problems = append(problems, fmt.Sprintf("items[%d]: product id is required", i))
		}
		if line.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d]: quantity must be positive", i))
		} else if line.Quantity > maxLineQuantity {
			problems = append(problems, fmt.Sprintf("items[%d]: quantity must not exceed %d", i, maxLineQuantity))
		}
		if line.Size != "" {
			if _, err := domain.ParseSize(line.Size); err != nil {
				problems = append(problems, fmt.Sprintf("items[%d]: unknown size %q", i, line.Size))
			}
		}
	}
	if in.Address.IsZero() {
		problems = append(problems, "address is required")
	}
	if in.ShippingCharge.IsNegative() || in.Tax.IsNegative() || in.Discount.IsNegative() {
		problems = append(problems, "charges must not be negative")
	}
	if in.Total != nil && in.Total.IsNegative() {
		problems = append(problems, "total must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t domain.EventType, order *domain.Order) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, domain.NewOrderEvent(t, order, s.now())); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "failed to publish order event", "error", err, "type", t, "order_id", order.ID)
	}
}

func linesOf(items []domain.OrderItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// mergeLines sums quantities per product, keeping first-seen order.
func mergeLines(items []domain.OrderItem) []inventory.Line {
	var lines []inventory.Line
	index := make(map[string]int)
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func titleOf(items []domain.OrderItem, productID string) string {
	for _, item := range items {
		if item.ProductID == productID {
			return item.Title
		}
	}
	return productID
}
