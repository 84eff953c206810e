package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{}
	c := NewHeaderCarrier(msg)

	c.Set("traceparent", "a")
	c.Set("baggage", "b")
	c.Set("traceparent", "c")

	assert.Equal(t, "c", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func TestProducer_PublishOrderEvent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	w := &captureWriter{}
	p := &Producer{writer: w, topic: "order.events"}

	ctx, span := tp.Tracer("test").Start(context.Background(), "checkout")
	event := domain.OrderEvent{
		Type:        domain.EventOrderPaid,
		OrderID:     "o1",
		FinalAmount: decimal.RequireFromString("500.00"),
		Timestamp:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishOrderEvent(ctx, event))
	span.End()

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "o1", string(msg.Key))

	carrier := NewHeaderCarrier(&msg)
	assert.Equal(t, "order.paid", carrier.Get(EventTypeHeader))
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())

	var decoded domain.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.EventOrderPaid, decoded.Type)
	assert.True(t, decoded.FinalAmount.Equal(event.FinalAmount))

	w.err = errors.New("broker down")
	require.Error(t, p.PublishOrderEvent(context.Background(), event))
}

func TestConsumer_Retry(t *testing.T) {
	c := &Consumer{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRetries:      3,
		initialInterval: time.Millisecond,
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("email service unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			return errors.New("still down")
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			return backoff.Permanent(errors.New("malformed event"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
