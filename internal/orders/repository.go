package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

// OrderPatch is a partial update. Nil fields are left untouched; the If*
// fields turn the update into a compare-and-set.
type OrderPatch struct {
	PaymentStatus    *domain.PaymentStatus
	DeliveryStatus   *domain.DeliveryStatus
	GatewayPaymentID *string
	GatewaySignature *string
	CapturedAt       *time.Time
	StockCommitted   *bool

	IfPaymentStatus  *domain.PaymentStatus
	IfDeliveryStatus *domain.DeliveryStatus
	IfNotCancelled   bool
}

const orderColumns = `
	id, user_id, customer_name, customer_email, address,
	subtotal, shipping_charge, tax, discount, coupon_code, total, final_amount, currency,
	delivery_status, payment_mode, payment_status, stock_committed,
	gateway_order_id, gateway_payment_id, gateway_signature, captured_at,
	created_at, updated_at`

const itemColumns = `
	order_id, product_id, title, description, images, thumbnail,
	brand_id, brand_name, category_name, sku, weight,
	unit_price, price_at_purchase, quantity, size`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, customer_name, customer_email, address,
			subtotal, shipping_charge, tax, discount, coupon_code, total, final_amount, currency,
			delivery_status, payment_mode, payment_status, stock_committed,
			gateway_order_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NULLIF($18, ''), $19, $19)
	`,
		order.ID, order.UserID, order.CustomerName, order.CustomerEmail, order.Address,
		order.Subtotal, order.ShippingCharge, order.Tax, order.Discount, order.CouponCode,
		order.Total, order.FinalAmount, order.Currency,
		order.DeliveryStatus, order.PaymentMode, order.PaymentStatus, order.StockCommitted,
		order.GatewayOrderID, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		var size sql.NullString
		if item.Size != nil {
			size = sql.NullString{String: string(*item.Size), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, position, product_id, title, description, images, thumbnail,
				brand_id, brand_name, category_name, sku, weight,
				unit_price, price_at_purchase, quantity, size
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			uuid.New().String(), order.ID, i, item.ProductID, item.Title, item.Description,
			pq.Array(item.Images), item.Thumbnail, item.BrandID, item.BrandName, item.CategoryName,
			item.SKU, item.Weight, item.UnitPrice, item.PriceAtPurchase, item.Quantity, size,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	return tx.Commit()
}

// GetByID returns nil, nil when the order does not exist.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

// Update applies patch and returns the updated order. It returns nil, nil
// when no row matched the id and the patch conditions.
func (r *OrderRepository) Update(ctx context.Context, id string, patch OrderPatch) (*domain.Order, error) {
	args := []any{id}
	var sets []string
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.PaymentStatus != nil {
		set("payment_status", *patch.PaymentStatus)
	}
	if patch.DeliveryStatus != nil {
		set("delivery_status", *patch.DeliveryStatus)
	}
	if patch.GatewayPaymentID != nil {
		set("gateway_payment_id", *patch.GatewayPaymentID)
	}
	if patch.GatewaySignature != nil {
		set("gateway_signature", *patch.GatewaySignature)
	}
	if patch.CapturedAt != nil {
		set("captured_at", *patch.CapturedAt)
	}
	if patch.StockCommitted != nil {
		set("stock_committed", *patch.StockCommitted)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	where := []string{"id = $1"}
	if patch.IfPaymentStatus != nil {
		args = append(args, *patch.IfPaymentStatus)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if patch.IfDeliveryStatus != nil {
		args = append(args, *patch.IfDeliveryStatus)
		where = append(where, fmt.Sprintf("delivery_status = $%d", len(args)))
	}
	if patch.IfNotCancelled {
		where = append(where, "delivery_status <> 'cancelled'")
	}

	query := "UPDATE orders SET " + strings.Join(sets, ", ") + " WHERE " + strings.Join(where, " AND ")

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// Cancel moves the order from the given delivery status to cancelled and
// clears its stock marker. The returned flag is the marker's value before
// the update, read under the same row lock, so exactly one caller ever
// observes true. It returns nil, false, nil when the status did not match.
func (r *OrderRepository) Cancel(ctx context.Context, id string, from domain.DeliveryStatus) (*domain.Order, bool, error) {
	var wasCommitted bool

	err := r.db.QueryRowContext(ctx, `
		WITH prev AS (
			SELECT id, stock_committed
			FROM orders
			WHERE id = $1 AND delivery_status = $2
			FOR UPDATE
		)
		UPDATE orders o
		SET delivery_status = 'cancelled', stock_committed = FALSE, updated_at = NOW()
		FROM prev
		WHERE o.id = prev.id
		RETURNING prev.stock_committed
	`, id, from).Scan(&wasCommitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cancel order: %w", err)
	}

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	return order, wasCommitted, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

// List returns one page of orders, newest first, and the total count.
func (r *OrderRepository) List(ctx context.Context, limit, offset int) ([]domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}

	orders, err := r.query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *OrderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
			size    sql.NullString
		)
		err := rows.Scan(
			&orderID, &item.ProductID, &item.Title, &item.Description, pq.Array(&item.Images), &item.Thumbnail,
			&item.BrandID, &item.BrandName, &item.CategoryName, &item.SKU, &item.Weight,
			&item.UnitPrice, &item.PriceAtPurchase, &item.Quantity, &size,
		)
		if err != nil {
			return err
		}
		if item.Images == nil {
			item.Images = []string{}
		}
		if size.Valid {
			s := domain.Size(size.String)
			item.Size = &s
		}
		if order, ok := orderMap[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order            domain.Order
		gatewayOrderID   sql.NullString
		gatewayPaymentID sql.NullString
		gatewaySignature sql.NullString
		capturedAt       sql.NullTime
	)

	err := row.Scan(
		&order.ID, &order.UserID, &order.CustomerName, &order.CustomerEmail, &order.Address,
		&order.Subtotal, &order.ShippingCharge, &order.Tax, &order.Discount, &order.CouponCode,
		&order.Total, &order.FinalAmount, &order.Currency,
		&order.DeliveryStatus, &order.PaymentMode, &order.PaymentStatus, &order.StockCommitted,
		&gatewayOrderID, &gatewayPaymentID, &gatewaySignature, &capturedAt,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.GatewayOrderID = gatewayOrderID.String
	order.GatewayPaymentID = gatewayPaymentID.String
	order.GatewaySignature = gatewaySignature.String
	if capturedAt.Valid {
		t := capturedAt.Time
		order.CapturedAt = &t
	}
	order.Items = []domain.OrderItem{}

	return &order, nil
}
