package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderPaid          EventType = "order.paid"
	EventOrderPaymentFailed EventType = "order.payment_failed"
	EventOrderCancelled     EventType = "order.cancelled"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderRefunded      EventType = "order.refunded"
)

type OrderEvent struct {
	Type           EventType       `json:"type"`
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	CustomerName   string          `json:"customer_name"`
	CustomerEmail  string          `json:"customer_email"`
	PaymentMode    PaymentMode     `json:"payment_mode"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	DeliveryStatus DeliveryStatus  `json:"status"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Currency       string          `json:"currency"`
	ItemCount      int             `json:"item_count"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewOrderEvent(t EventType, o *Order, at time.Time) OrderEvent {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return OrderEvent{
		Type:           t,
		OrderID:        o.ID,
		UserID:         o.UserID,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		PaymentMode:    o.PaymentMode,
		PaymentStatus:  o.PaymentStatus,
		DeliveryStatus: o.DeliveryStatus,
		FinalAmount:    o.FinalAmount,
		Currency:       o.Currency,
		ItemCount:      count,
		Timestamp:      at,
	}
}
