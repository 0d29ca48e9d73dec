package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/pkg/database/dbtest"
	"tomatomall/internal/pkg/identity"
	"tomatomall/internal/pkg/retry"
	invapp "tomatomall/internal/service/inventory/application"
	invinfra "tomatomall/internal/service/inventory/infrastructure"
	"tomatomall/internal/service/order/application"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
	"tomatomall/internal/service/order/infrastructure"
	"tomatomall/internal/service/order/infrastructure/adapter"
	promoapp "tomatomall/internal/service/promotion/application"
	promoinfra "tomatomall/internal/service/promotion/infrastructure"
	"tomatomall/internal/service/promotion/infrastructure/rule"
)

const (
	testUser  = "7"
	validSign = "signed-by-gateway"
)

type stubGateway struct{}

func (stubGateway) CreatePaymentForm(_ context.Context, req port.PaymentFormRequest) (string, error) {
	return "<form>" + req.OutTradeNo + "</form>", nil
}

func (stubGateway) VerifyCallback(params url.Values) error {
	if params.Get("sign") != validSign {
		return domain.ErrPaymentSignatureInvalid
	}
	return nil
}

type server struct {
	db     *gorm.DB
	ledger *invapp.StockLedger
	mux    *http.ServeMux
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := dbtest.New(t,
		&invinfra.StockRecordModel{},
		&promoinfra.CouponTemplateModel{},
		&promoinfra.CouponModel{},
		&infrastructure.ProductModel{},
		&infrastructure.CartItemModel{},
		&infrastructure.AccountModel{},
		&infrastructure.OrderModel{},
		&infrastructure.LineReservationModel{},
	)
	tracer := noop.NewTracerProvider().Tracer("test")
	txm := database.NewTxManager(db)
	ledger := invapp.NewStockLedger(invinfra.NewGormStockRepository(db), tracer)
	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	promotions := promoapp.NewPromotionService(
		promoinfra.NewGormCouponRepository(db),
		promoinfra.NewGormTemplateRepository(db),
		engine, txm, tracer,
	)
	deps := application.Dependencies{
		Repo:     infrastructure.NewGormOrderRepository(db),
		Tx:       txm,
		Ledger:   ledger,
		Catalog:  adapter.NewGormCatalog(db, ledger),
		Cart:     adapter.NewGormCart(db),
		Coupons:  adapter.NewPromotionCouponAdapter(promotions),
		Accounts: adapter.NewGormAccount(db),
		Gateway:  stubGateway{},
		Tracer:   tracer,
	}
	policy := invapp.CommitPolicy(retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Multiplier: 2})
	orders := application.NewOrderApplicationService(deps, application.Options{TomatoRate: 10, StockPolicy: policy})
	settlement := application.NewSettlementService(deps, nil, policy)

	require.NoError(t, db.Create(&infrastructure.AccountModel{ID: 7, Username: "tomato", Name: "番茄"}).Error)
	require.NoError(t, db.Create(&infrastructure.ProductModel{ID: 1, Title: "番茄炒蛋", Price: decimal.RequireFromString("15")}).Error)
	_, err = ledger.Initialize(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, ledger.Restock(context.Background(), 1, 10))
	require.NoError(t, db.Create(&infrastructure.CartItemModel{ID: 11, UserID: 7, ProductID: 1, Quantity: 2}).Error)

	mux := http.NewServeMux()
	NewOrderHandler(orders, settlement).RegisterRoutes(mux)
	return &server{db: db, ledger: ledger, mux: mux}
}

func (s *server) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(identity.HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *server) checkout(t *testing.T) application.OrderResponse {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/orders/checkout", testUser, `{"cartItemIds":[11]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *server) notify(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/notify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func paidForm(orderID int64, amount, sign string) url.Values {
	v := url.Values{}
	v.Set("trade_status", "TRADE_SUCCESS")
	v.Set("out_trade_no", application.FormatOutTradeNo(time.Now(), orderID))
	v.Set("total_amount", amount)
	v.Set("trade_no", "2026101822001400000001")
	v.Set("sign", sign)
	return v
}

func TestCheckout_Created(t *testing.T) {
	s := newServer(t)
	resp := s.checkout(t)

	assert.Equal(t, domain.StatusPending, resp.Status)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, "Alipay", resp.PaymentMethod)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, domain.LineReserved, resp.Lines[0].Status)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		user string
		body string
		want int
	}{
		{"missing identity", "", `{"cartItemIds":[11]}`, http.StatusUnauthorized},
		{"malformed body", testUser, `{`, http.StatusBadRequest},
		{"empty checkout", testUser, `{"cartItemIds":[]}`, http.StatusUnprocessableEntity},
		{"unknown cart item", testUser, `{"cartItemIds":[99]}`, http.StatusNotFound},
		{"unknown coupon", testUser, `{"cartItemIds":[11],"couponId":404}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			rec := s.do(http.MethodPost, "/api/orders/checkout", tt.user, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	s := newServer(t)
	require.NoError(t, s.db.Model(&infrastructure.CartItemModel{}).Where("id = ?", 11).Update("quantity", 11).Error)
	rec := s.do(http.MethodPost, "/api/orders/checkout", testUser, `{"cartItemIds":[11]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBuyTomato(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodPost, "/api/orders/tomato", testUser, `{"tomatoCount":25}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp.BuyTomatoCnt)
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("2.5")))

	rec = s.do(http.MethodPost, "/api/orders/tomato", testUser, `{"tomatoCount":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNotify_PlainTextAck(t *testing.T) {
	s := newServer(t)
	order := s.checkout(t)

	rec := s.notify(paidForm(order.OrderID, "30.00", "forged"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fail", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = s.notify(paidForm(order.OrderID, "30.00", validSign))
	assert.Equal(t, "success", rec.Body.String())

	rec = s.do(http.MethodGet, "/api/orders/"+strconv.FormatInt(order.OrderID, 10), testUser, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusSuccess, got.Status)
	assert.Equal(t, domain.LineCommitted, got.Lines[0].Status)

	rec = s.notify(paidForm(order.OrderID, "30.00", validSign))
	assert.Equal(t, "success", rec.Body.String(), "redelivery is acknowledged")
}

func TestPay(t *testing.T) {
	s := newServer(t)
	order := s.checkout(t)
	path := "/api/orders/" + strconv.FormatInt(order.OrderID, 10) + "/pay"

	rec := s.do(http.MethodPost, path, testUser, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp application.PaymentFormResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.PaymentForm, "#"+strconv.FormatInt(order.OrderID, 10))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, path, "8", "").Code, "another user's order")
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/orders/abc/pay", testUser, "").Code)
}

func TestCancel(t *testing.T) {
	s := newServer(t)
	order := s.checkout(t)
	path := "/api/orders/" + strconv.FormatInt(order.OrderID, 10)

	rec := s.do(http.MethodDelete, path, testUser, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec2, err := s.ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10, rec2.Available)
	assert.Equal(t, 0, rec2.Frozen)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, path, testUser, "").Code)
}

func TestListOrders(t *testing.T) {
	s := newServer(t)
	s.checkout(t)

	rec := s.do(http.MethodGet, "/api/orders", testUser, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/orders", "", "").Code)
}

func TestErrorMapping_LedgerAndAccountErrors(t *testing.T) {
	t.Run("cart line with zero quantity", func(t *testing.T) {
		s := newServer(t)
		require.NoError(t, s.db.Model(&infrastructure.CartItemModel{}).Where("id = ?", 11).Update("quantity", 0).Error)
		rec := s.do(http.MethodPost, "/api/orders/checkout", testUser, `{"cartItemIds":[11]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	})

	t.Run("pay for a deleted account", func(t *testing.T) {
		s := newServer(t)
		order := s.checkout(t)
		require.NoError(t, s.db.Exec("DELETE FROM accounts").Error)
		rec := s.do(http.MethodPost, "/api/orders/"+strconv.FormatInt(order.OrderID, 10)+"/pay", testUser, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("cancel with frozen stock already gone", func(t *testing.T) {
		s := newServer(t)
		order := s.checkout(t)
		require.NoError(t, s.db.Exec("UPDATE stockpiles SET frozen = 0 WHERE product_id = 1").Error)
		rec := s.do(http.MethodDelete, "/api/orders/"+strconv.FormatInt(order.OrderID, 10), testUser, "")
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})
}
