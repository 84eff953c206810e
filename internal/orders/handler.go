package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
	"github.com/joao-fontenele/storefront-checkout/internal/inventory"
	"github.com/joao-fontenele/storefront-checkout/internal/logging"
	"github.com/joao-fontenele/storefront-checkout/internal/middleware"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/telemetry"
)

// Checkout is the order workflow the handler exposes over HTTP.
type Checkout interface {
	CreateCashOnDeliveryOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	CreateGatewayOrder(ctx context.Context, in CreateOrderInput) (*CheckoutSession, error)
	VerifyGatewayPayment(ctx context.Context, in VerifyPaymentInput) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, orderID string, in UpdateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context, page, size int) (*OrderPage, error)
}

type Handler struct {
	checkout Checkout
}

func NewHandler(checkout Checkout) *Handler {
	return &Handler{checkout: checkout}
}

// Register mounts the order routes. Admin routes require adminKey in the
// X-API-Key header; payment verification is rate limited per client.
func (h *Handler) Register(mux *http.ServeMux, adminKey string, verifyLimiter *middleware.IPRateLimiter) {
	verify := h.HandleVerify
	if verifyLimiter != nil {
		verify = verifyLimiter.Wrap(verify)
	}

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(h.HandleCreate))
	mux.HandleFunc("POST /orders/gateway", telemetry.WithHTTPRoute(h.HandleCreateGateway))
	mux.HandleFunc("POST /orders/{id}/verify", telemetry.WithHTTPRoute(verify))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(h.HandleCancel))
	mux.HandleFunc("PATCH /orders/{id}", telemetry.WithHTTPRoute(middleware.RequireAPIKey(adminKey, h.HandleUpdate)))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(middleware.RequireAPIKey(adminKey, h.HandleList)))
	mux.HandleFunc("GET /users/{userId}/orders", telemetry.WithHTTPRoute(h.HandleListByUser))
}

type createOrderRequest struct {
	CreateOrderInput
	PaymentMode string           `json:"payment_mode"`
	FinalAmount *decimal.Decimal `json:"final_amount,omitempty"`
}

func (h *Handler) decodeCreate(w http.ResponseWriter, r *http.Request) (createOrderRequest, bool) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Total == nil {
		req.Total = req.FinalAmount
	}
	return req, true
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	if req.PaymentMode != "" {
		mode, err := domain.ParsePaymentMode(req.PaymentMode)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if mode != domain.PaymentModeCOD {
			h.writeError(w, http.StatusBadRequest, "gateway orders are created with POST /orders/gateway")
			return
		}
	}

	order, err := h.checkout.CreateCashOnDeliveryOrder(r.Context(), req.CreateOrderInput)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, NewOrderResponse(order))
}

func (h *Handler) HandleCreateGateway(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	session, err := h.checkout.CreateGatewayOrder(r.Context(), req.CreateOrderInput)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var in VerifyPaymentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.OrderID = r.PathValue("id")

	order, err := h.checkout.VerifyGatewayPayment(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewOrderResponse(order))
}

type updateOrderRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var in UpdateOrderInput
	if req.Status != "" {
		status, err := domain.ParseDeliveryStatus(req.Status)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.DeliveryStatus = &status
	}
	if req.PaymentStatus != "" {
		status, err := domain.ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.PaymentStatus = &status
	}

	order, err := h.checkout.UpdateOrder(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.ListUserOrders(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, NewOrderResponses(orders))
}

type orderPageResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	size, err := queryInt(r, "size", defaultPageSize)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid size")
		return
	}

	result, err := h.checkout.ListOrders(r.Context(), page, size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, orderPageResponse{
		Orders: NewOrderResponses(result.Orders),
		Total:  result.Total,
		Page:   result.Page,
		Size:   result.Size,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *inventory.InsufficientStockError

	switch {
	case errors.As(err, &insufficient):
		h.writeError(w, http.StatusBadRequest, insufficient.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, inventory.ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSignatureMismatch):
		h.writeError(w, http.StatusBadRequest, "payment signature verification failed")
	case errors.Is(err, ErrNotFound), errors.Is(err, inventory.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "payment gateway not configured")
		h.writeError(w, http.StatusInternalServerError, "payment gateway not configured")
	case errors.Is(err, payment.ErrGateway):
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "payment gateway request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "payment gateway error")
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
