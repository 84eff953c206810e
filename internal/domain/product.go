package domain

import "github.com/shopspring/decimal"

type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BrandRef holds either a bare brand id or the expanded brand record.
type BrandRef struct {
	ID       string `json:"id"`
	Expanded *Brand `json:"expanded,omitempty"`
}

type Product struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Images       []string        `json:"images"`
	Thumbnail    string          `json:"thumbnail"`
	Brand        BrandRef        `json:"brand"`
	CategoryName string          `json:"category_name,omitempty"`
	SKU          string          `json:"sku,omitempty"`
	Weight       float64         `json:"weight,omitempty"`
	Stock        int             `json:"stock"`
}

type StockLevel struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Stock     int    `json:"stock"`
}
