package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway not configured")
	ErrGateway            = errors.New("payment gateway error")
)

const DefaultBaseURL = "https://api.razorpay.com"

type RemoteOrder struct {
	GatewayOrderID string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	Status         string `json:"status"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*RemoteOrder, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) (bool, error)
}

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

func (c Config) Configured() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

type Client struct {
	cfg      Config
	http     *http.Client
	duration metric.Float64Histogram
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	duration, err := otel.Meter("payment").Float64Histogram(
		"payment.gateway.duration",
		metric.WithDescription("Latency of payment gateway calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg, http: httpClient, duration: duration}, nil
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type gatewayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*RemoteOrder, error) {
	if !c.cfg.Configured() {
		return nil, ErrGatewayUnavailable
	}

	data, err := json.Marshal(createOrderRequest{Amount: amountMinor, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, fmt.Errorf("marshal gateway order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	start := time.Now()
	resp, err := c.http.Do(req)
	outcome := "ok"
	defer func() {
		c.duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("operation", "create_order"), attribute.String("outcome", outcome)))
	}()
	if err != nil {
		outcome = "transport_error"
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		outcome = "transport_error"
		return nil, fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "rejected"
		var ge gatewayErrorBody
		if json.Unmarshal(body, &ge) == nil && ge.Error.Description != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, ge.Error.Description)
		}
		return nil, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var order RemoteOrder
	if err := json.Unmarshal(body, &order); err != nil {
		outcome = "bad_response"
		return nil, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if order.GatewayOrderID == "" {
		outcome = "bad_response"
		return nil, fmt.Errorf("%w: response without order id", ErrGateway)
	}

	return &order, nil
}

func (c *Client) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) (bool, error) {
	if !c.cfg.Configured() {
		return false, ErrGatewayUnavailable
	}
	return VerifySignature(gatewayOrderID, gatewayPaymentID, signature, c.cfg.KeySecret), nil
}

var _ Gateway = (*Client)(nil)
