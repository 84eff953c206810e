package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`

	Items   []OrderItem `json:"items"`
	Address Address     `json:"address"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCharge decimal.Decimal `json:"shipping_charge"`
	Tax            decimal.Decimal `json:"tax"`
	Discount       decimal.Decimal `json:"discount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Total          decimal.Decimal `json:"total"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Currency       string          `json:"currency"`

	DeliveryStatus DeliveryStatus `json:"status"`
	PaymentMode    PaymentMode    `json:"payment_mode"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`

	// StockCommitted is set once the items' stock has been decremented:
	// at creation for COD orders, after verification for gateway orders.
	StockCommitted bool `json:"stock_committed"`

	GatewayOrderID   string     `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	GatewaySignature string     `json:"-"`
	CapturedAt       *time.Time `json:"captured_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is a frozen copy of a product taken when the order is created.
// Only the snapshot builder populates it.
type OrderItem struct {
	ProductID       string          `json:"product_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Images          []string        `json:"images"`
	Thumbnail       string          `json:"thumbnail,omitempty"`
	BrandID         string          `json:"brand_id,omitempty"`
	BrandName       string          `json:"brand_name,omitempty"`
	CategoryName    string          `json:"category_name,omitempty"`
	SKU             string          `json:"sku,omitempty"`
	Weight          float64         `json:"weight,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Quantity        int             `json:"quantity"`
	Size            *Size           `json:"size,omitempty"`
}

type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) IsZero() bool {
	return a.Line1 == "" && a.City == "" && a.PostalCode == ""
}

// Value stores the address as a JSONB document.
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Address{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("address: unsupported scan type")
	}
}
