package domain

import (
	"errors"
	"testing"
)

func TestValidatePaymentTransition(t *testing.T) {
	all := []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}
	allowed := map[[2]PaymentStatus]bool{
		{PaymentPending, PaymentPaid}:   true,
		{PaymentPending, PaymentFailed}: true,
		{PaymentPaid, PaymentRefunded}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			err := ValidatePaymentTransition(from, to)
			if allowed[[2]PaymentStatus{from, to}] {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
		}
	}
}

func TestValidateDeliveryTransition(t *testing.T) {
	tests := []struct {
		from DeliveryStatus
		to   DeliveryStatus
		ok   bool
	}{
		{DeliveryPending, DeliveryDispatched, true},
		{DeliveryPending, DeliveryCancelled, true},
		{DeliveryDispatched, DeliveryOutForDelivery, true},
		{DeliveryDispatched, DeliveryCancelled, true},
		{DeliveryOutForDelivery, DeliveryDelivered, true},
		{DeliveryOutForDelivery, DeliveryCancelled, false},
		{DeliveryDelivered, DeliveryCancelled, false},
		{DeliveryCancelled, DeliveryPending, false},
		{DeliveryPending, DeliveryDelivered, false},
		{DeliveryPending, DeliveryPending, false},
	}

	for _, tt := range tests {
		err := ValidateDeliveryTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.to, err)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	t.Run("delivery status spellings", func(t *testing.T) {
		for in, want := range map[string]DeliveryStatus{
			"Pending":          DeliveryPending,
			"Out-for-delivery": DeliveryOutForDelivery,
			"out for delivery": DeliveryOutForDelivery,
			"Cancelled":        DeliveryCancelled,
			"canceled":         DeliveryCancelled,
		} {
			got, err := ParseDeliveryStatus(in)
			if err != nil || got != want {
				t.Errorf("ParseDeliveryStatus(%q) = %q, %v; want %q", in, got, err, want)
			}
		}
	})

	t.Run("payment mode", func(t *testing.T) {
		got, err := ParsePaymentMode("COD")
		if err != nil || got != PaymentModeCOD {
			t.Fatalf("expected cod, got %q, %v", got, err)
		}
		if _, err := ParsePaymentMode("barter"); !errors.Is(err, ErrUnknownStatus) {
			t.Fatalf("expected ErrUnknownStatus, got %v", err)
		}
	})

	t.Run("size", func(t *testing.T) {
		got, err := ParseSize("xl")
		if err != nil || got != SizeXL {
			t.Fatalf("expected XL, got %q, %v", got, err)
		}
		if _, err := ParseSize("XXXL"); err == nil {
			t.Fatal("expected error for unknown size")
		}
	})

	t.Run("unknown payment status", func(t *testing.T) {
		if _, err := ParsePaymentStatus("captured"); !errors.Is(err, ErrUnknownStatus) {
			t.Fatalf("expected ErrUnknownStatus, got %v", err)
		}
	})
}
