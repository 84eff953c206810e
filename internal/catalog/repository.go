package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns the product with its brand expanded when the brand row
// exists, or nil, nil when there is no such product.
func (r *Repository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	var (
		p            domain.Product
		brandID      sql.NullString
		brandName    sql.NullString
		categoryName sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.description, p.price, p.images, p.thumbnail,
		       p.brand_id, b.name, c.name, p.sku, p.weight, p.stock
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id).Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, pq.Array(&p.Images), &p.Thumbnail,
		&brandID, &brandName, &categoryName, &p.SKU, &p.Weight, &p.Stock,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	p.Brand.ID = brandID.String
	if brandName.Valid {
		p.Brand.Expanded = &domain.Brand{ID: brandID.String, Name: brandName.String}
	}
	p.CategoryName = categoryName.String

	return &p, nil
}
