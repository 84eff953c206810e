package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/messaging"
)

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

// Handle is a messaging.HandlerFunc. Undecodable events and rejected
// emails are permanent failures; transport errors are retried.
func (h *NotificationHandler) Handle(ctx context.Context, msg messaging.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return backoff.Permanent(fmt.Errorf("unmarshal order event: %w", err))
	}

	email, ok := Render(event)
	if !ok {
		h.logger.DebugContext(ctx, "no notification for event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}
	if email.To == "" {
		h.logger.WarnContext(ctx, "order event without customer email", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	if err := h.send(ctx, email); err != nil {
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}

	h.logger.InfoContext(ctx, "notification sent", "type", event.Type, "order_id", event.OrderID)
	return nil
}

// Render builds the customer email for an event. It reports false for
// events customers are not notified about.
func Render(e domain.OrderEvent) (Email, bool) {
	amount := e.FinalAmount.StringFixed(2) + " " + e.Currency
	greeting := "Hi"
	if e.CustomerName != "" {
		greeting = "Hi " + e.CustomerName
	}

	var subject, body string
	switch e.Type {
	case domain.EventOrderCreated:
		if e.PaymentMode == domain.PaymentModeGateway {
			return Email{}, false
		}
		subject = "Order placed: " + e.OrderID
		body = fmt.Sprintf("%s, your order %s with %d item(s) has been placed. Please keep %s ready for cash on delivery.", greeting, e.OrderID, e.ItemCount, amount)
	case domain.EventOrderPaid:
		subject = "Payment confirmed: " + e.OrderID
		body = fmt.Sprintf("%s, we received your payment of %s for order %s. We will let you know when it ships.", greeting, amount, e.OrderID)
	case domain.EventOrderPaymentFailed:
		subject = "Payment failed: " + e.OrderID
		body = fmt.Sprintf("%s, we could not verify the payment for order %s. You have not been charged by us; please try again.", greeting, e.OrderID)
	case domain.EventOrderCancelled:
		subject = "Order cancelled: " + e.OrderID
		body = fmt.Sprintf("%s, your order %s has been cancelled.", greeting, e.OrderID)
		if e.PaymentStatus == domain.PaymentPaid {
			body += " Your refund of " + amount + " will be processed shortly."
		}
	case domain.EventOrderRefunded:
		subject = "Refund issued: " + e.OrderID
		body = fmt.Sprintf("%s, a refund of %s for order %s has been issued.", greeting, amount, e.OrderID)
	case domain.EventOrderStatusChanged:
		switch e.DeliveryStatus {
		case domain.DeliveryDispatched:
			subject = "Order shipped: " + e.OrderID
			body = fmt.Sprintf("%s, your order %s is on its way.", greeting, e.OrderID)
		case domain.DeliveryOutForDelivery:
			subject = "Out for delivery: " + e.OrderID
			body = fmt.Sprintf("%s, your order %s is out for delivery today.", greeting, e.OrderID)
		case domain.DeliveryDelivered:
			subject = "Order delivered: " + e.OrderID
			body = fmt.Sprintf("%s, your order %s has been delivered.", greeting, e.OrderID)
		default:
			return Email{}, false
		}
	default:
		return Email{}, false
	}

	return Email{To: e.CustomerEmail, Subject: subject, Body: body}, true
}

func (h *NotificationHandler) send(ctx context.Context, email Email) error {
	data, err := json.Marshal(email)
	if err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("email service rejected message with status %d", resp.StatusCode))
	}

	return nil
}
