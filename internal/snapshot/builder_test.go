package snapshot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

func testProduct() domain.Product {
	return domain.Product{
		ID:           "prod-1",
		Title:        "Linen Shirt",
		Description:  "Relaxed fit",
		Price:        decimal.RequireFromString("49.90"),
		Images:       []string{"a.jpg", "b.jpg"},
		Thumbnail:    "thumb.jpg",
		Brand:        domain.BrandRef{ID: "brand-1", Expanded: &domain.Brand{ID: "brand-1", Name: "Northwind"}},
		CategoryName: "Shirts",
		SKU:          "LS-001",
		Weight:       0.3,
		Stock:        10,
	}
}

func TestBuild(t *testing.T) {
	t.Run("copies display fields and defaults price at purchase", func(t *testing.T) {
		size := domain.SizeM
		item := Build(testProduct(), 2, &size)

		assert.Equal(t, "prod-1", item.ProductID)
		assert.Equal(t, "Linen Shirt", item.Title)
		assert.Equal(t, "Northwind", item.BrandName)
		assert.Equal(t, "brand-1", item.BrandID)
		assert.Equal(t, "Shirts", item.CategoryName)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, item.Images)
		assert.Equal(t, 2, item.Quantity)
		require.NotNil(t, item.Size)
		assert.Equal(t, domain.SizeM, *item.Size)
		assert.True(t, item.PriceAtPurchase.Equal(decimal.RequireFromString("49.90")))
		assert.True(t, item.UnitPrice.Equal(item.PriceAtPurchase))
	})

	t.Run("brand given only as id", func(t *testing.T) {
		p := testProduct()
		p.Brand = domain.BrandRef{ID: "brand-9"}

		item := Build(p, 1, nil)

		assert.Equal(t, "brand-9", item.BrandID)
		assert.Empty(t, item.BrandName)
		assert.Nil(t, item.Size)
	})

	t.Run("price override", func(t *testing.T) {
		item := Build(testProduct(), 1, nil, WithPriceAtPurchase(decimal.RequireFromString("39.90")))

		assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("49.90")))
		assert.True(t, item.PriceAtPurchase.Equal(decimal.RequireFromString("39.90")))
	})

	t.Run("later product edits do not reach the snapshot", func(t *testing.T) {
		p := testProduct()
		size := domain.SizeL
		item := Build(p, 1, &size)

		p.Title = "Renamed"
		p.Price = decimal.RequireFromString("99.00")
		p.Images[0] = "changed.jpg"
		p.Brand.Expanded.Name = "Other"
		size = domain.SizeXS

		assert.Equal(t, "Linen Shirt", item.Title)
		assert.True(t, item.PriceAtPurchase.Equal(decimal.RequireFromString("49.90")))
		assert.Equal(t, "a.jpg", item.Images[0])
		assert.Equal(t, "Northwind", item.BrandName)
		assert.Equal(t, domain.SizeL, *item.Size)
	})

	t.Run("does not mutate the input product", func(t *testing.T) {
		p := testProduct()
		before := testProduct()

		item := Build(p, 3, nil)
		item.Images[1] = "mutated.jpg"

		assert.Equal(t, before.Images, p.Images)
		assert.Equal(t, before.Title, p.Title)
	})

	t.Run("nil images become empty list", func(t *testing.T) {
		p := testProduct()
		p.Images = nil

		item := Build(p, 1, nil)

		assert.NotNil(t, item.Images)
		assert.Empty(t, item.Images)
	})
}

func TestSubtotal(t *testing.T) {
	items := []domain.OrderItem{
		Build(testProduct(), 2, nil),
		Build(testProduct(), 1, nil, WithPriceAtPurchase(decimal.RequireFromString("10.10"))),
	}

	assert.True(t, Subtotal(items).Equal(decimal.RequireFromString("109.90")))
}
