package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/snapshot"
)

// OrderResponse is the client-facing shape of an order.
type OrderResponse struct {
	ID               string                `json:"id"`
	UserID           string                `json:"user_id"`
	CustomerName     string                `json:"customer_name"`
	CustomerEmail    string                `json:"customer_email"`
	Items            []OrderItemResponse   `json:"items"`
	Address          domain.Address        `json:"address"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	ShippingCharge   decimal.Decimal       `json:"shipping_charge"`
	Tax              decimal.Decimal       `json:"tax"`
	Discount         decimal.Decimal       `json:"discount"`
	CouponCode       string                `json:"coupon_code,omitempty"`
	Total            decimal.Decimal       `json:"total"`
	FinalAmount      decimal.Decimal       `json:"final_amount"`
	Currency         string                `json:"currency"`
	Status           domain.DeliveryStatus `json:"status"`
	PaymentMode      domain.PaymentMode    `json:"payment_mode"`
	PaymentStatus    domain.PaymentStatus  `json:"payment_status"`
	GatewayOrderID   string                `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string                `json:"gateway_payment_id,omitempty"`
	CapturedAt       *time.Time            `json:"captured_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID       string          `json:"product_id"`
	Title           string          `json:"title"`
	Image           string          `json:"image,omitempty"`
	Brand           string          `json:"brand,omitempty"`
	Size            *domain.Size    `json:"size,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		image := item.Thumbnail
		if image == "" && len(item.Images) > 0 {
			image = item.Images[0]
		}
		items = append(items, OrderItemResponse{
			ProductID:       item.ProductID,
			Title:           item.Title,
			Image:           image,
			Brand:           item.BrandName,
			Size:            item.Size,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			PriceAtPurchase: item.PriceAtPurchase,
			LineTotal:       snapshot.LineTotal(item),
		})
	}

	return OrderResponse{
		ID:               o.ID,
		UserID:           o.UserID,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		Items:            items,
		Address:          o.Address,
		Subtotal:         o.Subtotal,
		ShippingCharge:   o.ShippingCharge,
		Tax:              o.Tax,
		Discount:         o.Discount,
		CouponCode:       o.CouponCode,
		Total:            o.Total,
		FinalAmount:      o.FinalAmount,
		Currency:         o.Currency,
		Status:           o.DeliveryStatus,
		PaymentMode:      o.PaymentMode,
		PaymentStatus:    o.PaymentStatus,
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: o.GatewayPaymentID,
		CapturedAt:       o.CapturedAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func NewOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
