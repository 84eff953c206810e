package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/messaging"
)

func newHandler(url string) *NotificationHandler {
	return NewNotificationHandler(url, http.DefaultClient, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func message(t *testing.T, e domain.OrderEvent) messaging.Message {
	t.Helper()
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return messaging.Message{Key: e.OrderID, EventType: string(e.Type), Payload: data}
}

func TestNotificationHandler_Handle(t *testing.T) {
	var received []Email
	status := http.StatusOK

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var e Email
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Errorf("decode: %v", err)
		}
		received = append(received, e)
		w.WriteHeader(status)
	}))
	defer server.Close()

	h := newHandler(server.URL)
	paid := domain.OrderEvent{
		Type:          domain.EventOrderPaid,
		OrderID:       "o1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		FinalAmount:   decimal.RequireFromString("500"),
		Currency:      "INR",
	}

	t.Run("sends payment confirmation", func(t *testing.T) {
		if err := h.Handle(context.Background(), message(t, paid)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(received) != 1 {
			t.Fatalf("expected 1 email, got %d", len(received))
		}
		if received[0].To != "ada@example.com" || received[0].Subject != "Payment confirmed: o1" {
			t.Fatalf("unexpected email %+v", received[0])
		}
	})

	t.Run("silent events send nothing", func(t *testing.T) {
		received = nil
		created := paid
		created.Type = domain.EventOrderCreated
		created.PaymentMode = domain.PaymentModeGateway

		if err := h.Handle(context.Background(), message(t, created)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(received) != 0 {
			t.Fatalf("expected no email, got %d", len(received))
		}
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		err := h.Handle(context.Background(), messaging.Message{Payload: []byte("{")})
		var permanent *backoff.PermanentError
		if !errors.As(err, &permanent) {
			t.Fatalf("expected permanent error, got %v", err)
		}
	})

	t.Run("server errors are retryable", func(t *testing.T) {
		status = http.StatusServiceUnavailable
		err := h.Handle(context.Background(), message(t, paid))
		var permanent *backoff.PermanentError
		if err == nil || errors.As(err, &permanent) {
			t.Fatalf("expected retryable error, got %v", err)
		}
	})

	t.Run("rejections are permanent", func(t *testing.T) {
		status = http.StatusBadRequest
		err := h.Handle(context.Background(), message(t, paid))
		var permanent *backoff.PermanentError
		if !errors.As(err, &permanent) {
			t.Fatalf("expected permanent error, got %v", err)
		}
	})
}

func TestRender(t *testing.T) {
	base := domain.OrderEvent{OrderID: "o9", CustomerEmail: "c@example.com", FinalAmount: decimal.RequireFromString("12.5"), Currency: "INR"}

	tests := []struct {
		name     string
		mutate   func(e *domain.OrderEvent)
		wantSend bool
		subject  string
	}{
		{"cod created", func(e *domain.OrderEvent) { e.Type = domain.EventOrderCreated; e.PaymentMode = domain.PaymentModeCOD }, true, "Order placed: o9"},
		{"gateway created", func(e *domain.OrderEvent) { e.Type = domain.EventOrderCreated; e.PaymentMode = domain.PaymentModeGateway }, false, ""},
		{"payment failed", func(e *domain.OrderEvent) { e.Type = domain.EventOrderPaymentFailed }, true, "Payment failed: o9"},
		{"cancelled", func(e *domain.OrderEvent) { e.Type = domain.EventOrderCancelled }, true, "Order cancelled: o9"},
		{"refunded", func(e *domain.OrderEvent) { e.Type = domain.EventOrderRefunded }, true, "Refund issued: o9"},
		{"shipped", func(e *domain.OrderEvent) {
			e.Type = domain.EventOrderStatusChanged
			e.DeliveryStatus = domain.DeliveryDispatched
		}, true, "Order shipped: o9"},
		{"paid via admin", func(e *domain.OrderEvent) {
			e.Type = domain.EventOrderStatusChanged
			e.DeliveryStatus = domain.DeliveryPending
		}, false, ""},
		{"unknown", func(e *domain.OrderEvent) { e.Type = "order.archived" }, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := base
			tt.mutate(&e)
			email, ok := Render(e)
			if ok != tt.wantSend {
				t.Fatalf("Render() ok = %v, want %v", ok, tt.wantSend)
			}
			if ok && email.Subject != tt.subject {
				t.Fatalf("subject = %q, want %q", email.Subject, tt.subject)
			}
		})
	}

	t.Run("paid cancellation mentions refund", func(t *testing.T) {
		e := base
		e.Type = domain.EventOrderCancelled
		e.PaymentStatus = domain.PaymentPaid
		email, _ := Render(e)
		if want := "refund of 12.50 INR"; !strings.Contains(email.Body, want) {
			t.Fatalf("body %q does not mention %q", email.Body, want)
		}
	})
}
