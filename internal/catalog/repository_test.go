package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const findSQL = `SELECT p.id, p.title, .* FROM products p LEFT JOIN brands b .* WHERE p.id = \$1`

var productColumns = []string{
	"id", "title", "description", "price", "images", "thumbnail",
	"brand_id", "name", "name", "sku", "weight", "stock",
}

func TestRepository_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("expanded brand", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(findSQL).WithArgs("p1").WillReturnRows(
			sqlmock.NewRows(productColumns).AddRow(
				"p1", "Linen Shirt", "Breathable", "49.95", `{"a.jpg","b.jpg"}`, "t.jpg",
				"br1", "Northwind", "Shirts", "LS-01", 0.3, 12,
			),
		)

		p, err := NewRepository(db).FindByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, p)

		assert.Equal(t, "Linen Shirt", p.Title)
		assert.Equal(t, "49.95", p.Price.StringFixed(2))
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, p.Images)
		require.NotNil(t, p.Brand.Expanded)
		assert.Equal(t, "Northwind", p.Brand.Expanded.Name)
		assert.Equal(t, "Shirts", p.CategoryName)
		assert.Equal(t, 12, p.Stock)
	})

	t.Run("brand without row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(findSQL).WithArgs("p2").WillReturnRows(
			sqlmock.NewRows(productColumns).AddRow(
				"p2", "Scarf", "", "10", `{}`, "",
				"br-missing", nil, nil, "", 0.0, 1,
			),
		)

		p, err := NewRepository(db).FindByID(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, "br-missing", p.Brand.ID)
		assert.Nil(t, p.Brand.Expanded)
		assert.Empty(t, p.CategoryName)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(findSQL).WithArgs("nope").WillReturnError(sql.ErrNoRows)

		p, err := NewRepository(db).FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
