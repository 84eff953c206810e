package snapshot

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

type options struct {
	price *decimal.Decimal
}

type Option func(*options)

// WithPriceAtPurchase charges a price other than the product's current one,
// e.g. after a coupon was applied to the line.
func WithPriceAtPurchase(price decimal.Decimal) Option {
	return func(o *options) {
		o.price = &price
	}
}

// Build copies the fields needed for historical display and fulfillment.
// The product is not modified and the result shares no memory with it.
func Build(product domain.Product, quantity int, size *domain.Size, opts ...Option) domain.OrderItem {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	item := domain.OrderItem{
		ProductID:       product.ID,
		Title:           product.Title,
		Description:     product.Description,
		Images:          slices.Clone(product.Images),
		Thumbnail:       product.Thumbnail,
		BrandID:         product.Brand.ID,
		CategoryName:    product.CategoryName,
		SKU:             product.SKU,
		Weight:          product.Weight,
		UnitPrice:       product.Price,
		PriceAtPurchase: product.Price,
		Quantity:        quantity,
	}

	if item.Images == nil {
		item.Images = []string{}
	}

	if b := product.Brand.Expanded; b != nil {
		item.BrandName = b.Name
		if item.BrandID == "" {
			item.BrandID = b.ID
		}
	}

	if o.price != nil {
		item.PriceAtPurchase = *o.price
	}

	if size != nil {
		s := *size
		item.Size = &s
	}

	return item
}

func LineTotal(item domain.OrderItem) decimal.Decimal {
	return item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func Subtotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}
