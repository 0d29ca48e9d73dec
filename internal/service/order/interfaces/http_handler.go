package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"tomatomall/internal/pkg/identity"
	"tomatomall/internal/pkg/logger"
	invdomain "tomatomall/internal/service/inventory/domain"
	"tomatomall/internal/service/order/application"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/infrastructure/adapter"
	promodomain "tomatomall/internal/service/promotion/domain"
)

// maxNotifyBody 异步通知的表单体上限
const maxNotifyBody = 64 << 10

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	orders     *application.OrderApplicationService
	settlement *application.SettlementService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(orders *application.OrderApplicationService, settlement *application.SettlementService) *OrderHandler {
	return &OrderHandler{orders: orders, settlement: settlement}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders/checkout", h.handleCheckout)
	mux.HandleFunc("POST /api/orders/tomato", h.handleBuyTomato)
	mux.HandleFunc("POST /api/orders/notify", h.handleNotify)
	mux.HandleFunc("POST /api/orders/{orderId}/pay", h.handlePay)
	mux.HandleFunc("DELETE /api/orders/{orderId}", h.handleCancel)
	mux.HandleFunc("GET /api/orders/{orderId}", h.handleGet)
	mux.HandleFunc("GET /api/orders", h.handleList)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID, err := identity.UserID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req application.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = userID
	resp, err := h.orders.Checkout(ctx, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) handleBuyTomato(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID, err := identity.UserID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req application.BuyTomatoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = userID
	resp, err := h.orders.BuyTomato(ctx, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID, orderID, ok := userAndOrder(w, r)
	if !ok {
		return
	}
	resp, err := h.orders.Pay(ctx, userID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID, orderID, ok := userAndOrder(w, r)
	if !ok {
		return
	}
	if err := h.orders.CancelOrder(ctx, userID, orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "删除成功")
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID, orderID, ok := userAndOrder(w, r)
	if !ok {
		return
	}
	resp, err := h.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	userID, err := identity.UserID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	resp, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotify 接收支付网关的异步通知，应答体只能是纯文本 success 或 fail
func (h *OrderHandler) handleNotify(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	r.Body = http.MaxBytesReader(w, r.Body, maxNotifyBody)
	ack := application.AckFail
	if err := r.ParseForm(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("malformed payment callback")
	} else {
		ack = h.settlement.HandlePaymentCallback(ctx, r.PostForm)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ack))
}

func userAndOrder(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, err := identity.UserID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return 0, 0, false
	}
	orderID, err := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, 0, false
	}
	return userID, orderID, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, adapter.ErrProductNotFound),
		errors.Is(err, invdomain.ErrStockNotFound),
		errors.Is(err, promodomain.ErrCouponNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrOrderNotPending),
		errors.Is(err, invdomain.ErrOptimisticLockConflict),
		errors.Is(err, invdomain.ErrInsufficientStock),
		errors.Is(err, invdomain.ErrInsufficientFrozen),
		errors.Is(err, domain.ErrQuantityExceedsStock):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrEmptyCheckout),
		errors.Is(err, domain.ErrTomatoCountIllegal),
		errors.Is(err, invdomain.ErrInvalidQuantity),
		errors.Is(err, promodomain.ErrCouponInvalid),
		errors.Is(err, promodomain.ErrThresholdNotReached),
		errors.Is(err, promodomain.ErrUnsupportedCouponType):
		statusCode = http.StatusUnprocessableEntity
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}
