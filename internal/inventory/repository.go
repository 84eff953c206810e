package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError reports the product that could not be reserved.
// It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID string
	Title     string
	Requested int
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, only %d left", e.Title, e.Requested, e.Remaining)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Line is a quantity of a single product.
type Line struct {
	ProductID string
	Quantity  int
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger owns the stock counter of every product. Decrements are
// conditional on the counter staying non-negative and happen in a single
// statement, so concurrent reservations can never oversell.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) ListAll(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, title, stock
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.StockLevel{}
	for rows.Next() {
		var stock domain.StockLevel
		if err := rows.Scan(&stock.ProductID, &stock.Title, &stock.Stock); err != nil {
			return nil, err
		}
		items = append(items, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// GetStock returns nil, nil when the product does not exist.
func (l *Ledger) GetStock(ctx context.Context, productID string) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := l.db.QueryRowContext(ctx, `
		SELECT id, title, stock
		FROM products
		WHERE id = $1
	`, productID).Scan(&stock.ProductID, &stock.Title, &stock.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return stock, nil
}

func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	stock, err := l.GetStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	if stock == nil {
		return 0, ErrProductNotFound
	}
	return stock.Stock, nil
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return reserve(ctx, l.db, productID, quantity)
}

func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return release(ctx, l.db, productID, quantity)
}

// ReserveAll decrements every line or none of them.
func (l *Ledger) ReserveAll(ctx context.Context, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range merged {
		if err := reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (l *Ledger) ReleaseAll(ctx context.Context, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range merged {
		if err := release(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func reserve(ctx context.Context, q querier, productID string, quantity int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var title string
		var remaining int
		err := q.QueryRowContext(ctx, `
			SELECT title, stock
			FROM products
			WHERE id = $1
		`, productID).Scan(&title, &remaining)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		if err != nil {
			return err
		}
		return &InsufficientStockError{
			ProductID: productID,
			Title:     title,
			Requested: quantity,
			Remaining: remaining,
		}
	}

	return nil
}

func release(ctx context.Context, q querier, productID string, quantity int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	return nil
}

// mergeLines sums quantities per product and orders the result by product
// id so that concurrent transactions lock rows in the same order.
func mergeLines(lines []Line) ([]Line, error) {
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}

	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })

	return merged, nil
}
