package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown status")
)

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryDispatched     DeliveryStatus = "dispatched"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryCancelled      DeliveryStatus = "cancelled"
)

type PaymentMode string

const (
	PaymentModeCOD     PaymentMode = "cod"
	PaymentModeGateway PaymentMode = "gateway"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {PaymentRefunded},
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:        {DeliveryDispatched, DeliveryCancelled},
	DeliveryDispatched:     {DeliveryOutForDelivery, DeliveryCancelled},
	DeliveryOutForDelivery: {DeliveryDelivered},
}

func ValidatePaymentTransition(from, to PaymentStatus) error {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, from, to)
}

func ValidateDeliveryTransition(from, to DeliveryStatus) error {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: delivery %s -> %s", ErrInvalidTransition, from, to)
}

// normalize folds the spellings clients send ("Out-for-delivery",
// "OUT FOR DELIVERY") into the stored form.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	switch DeliveryStatus(normalize(s)) {
	case DeliveryPending:
		return DeliveryPending, nil
	case DeliveryDispatched:
		return DeliveryDispatched, nil
	case DeliveryOutForDelivery:
		return DeliveryOutForDelivery, nil
	case DeliveryDelivered:
		return DeliveryDelivered, nil
	case DeliveryCancelled, "canceled":
		return DeliveryCancelled, nil
	}
	return "", fmt.Errorf("%w: delivery status %q", ErrUnknownStatus, s)
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(normalize(s)) {
	case PaymentPending:
		return PaymentPending, nil
	case PaymentPaid:
		return PaymentPaid, nil
	case PaymentFailed:
		return PaymentFailed, nil
	case PaymentRefunded:
		return PaymentRefunded, nil
	}
	return "", fmt.Errorf("%w: payment status %q", ErrUnknownStatus, s)
}

func ParsePaymentMode(s string) (PaymentMode, error) {
	switch normalize(s) {
	case "cod", "cash_on_delivery":
		return PaymentModeCOD, nil
	case "gateway", "online", "razorpay":
		return PaymentModeGateway, nil
	}
	return "", fmt.Errorf("%w: payment mode %q", ErrUnknownStatus, s)
}

func ParseSize(s string) (Size, error) {
	switch Size(strings.ToUpper(strings.TrimSpace(s))) {
	case SizeXS:
		return SizeXS, nil
	case SizeS:
		return SizeS, nil
	case SizeM:
		return SizeM, nil
	case SizeL:
		return SizeL, nil
	case SizeXL:
		return SizeXL, nil
	case SizeXXL:
		return SizeXXL, nil
	}
	return "", fmt.Errorf("%w: size %q", ErrUnknownStatus, s)
}
