package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"tomatomall/internal/service/inventory/application"
	"tomatomall/internal/service/inventory/domain"
)

// StockHandler 暴露库存管理接口
type StockHandler struct {
	ledger *application.StockLedger
}

func NewStockHandler(ledger *application.StockLedger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *StockHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stockpiles/{productId}", h.handleGet)
	mux.HandleFunc("POST /api/stockpiles/{productId}", h.handleInit)
	mux.HandleFunc("PATCH /api/stockpiles/{productId}", h.handleRestock)
}

type stockResponse struct {
	ProductID int64 `json:"productId"`
	Amount    int   `json:"amount"`
	Frozen    int   `json:"frozen"`
}

type restockRequest struct {
	Amount int `json:"amount"`
}

func (h *StockHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.ledger.Get(ctx, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStock(w, http.StatusOK, rec)
}

func (h *StockHandler) handleInit(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.ledger.Initialize(ctx, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStock(w, http.StatusCreated, rec)
}

func (h *StockHandler) handleRestock(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.ledger.Restock(ctx, productID, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.ledger.Get(ctx, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStock(w, http.StatusOK, rec)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeStock(w http.ResponseWriter, status int, rec *domain.StockRecord) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(stockResponse{ProductID: rec.ProductID, Amount: rec.Available, Frozen: rec.Frozen})
}

// writeError 根据错误类型返回不同的 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrStockNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrOptimisticLockConflict), errors.Is(err, domain.ErrStockAlreadyExists):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuantity):
		statusCode = http.StatusBadRequest
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}
