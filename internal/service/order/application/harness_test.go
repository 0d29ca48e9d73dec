package application

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/pkg/database/dbtest"
	"tomatomall/internal/pkg/retry"
	invapp "tomatomall/internal/service/inventory/application"
	invinfra "tomatomall/internal/service/inventory/infrastructure"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
	"tomatomall/internal/service/order/infrastructure"
	"tomatomall/internal/service/order/infrastructure/adapter"
	promoapp "tomatomall/internal/service/promotion/application"
	promodomain "tomatomall/internal/service/promotion/domain"
	promoinfra "tomatomall/internal/service/promotion/infrastructure"
	"tomatomall/internal/service/promotion/infrastructure/rule"
)

const testUser int64 = 7

type harness struct {
	t          *testing.T
	db         *gorm.DB
	ledger     *invapp.StockLedger
	promotions *promoapp.PromotionService
	repo       *infrastructure.GormOrderRepository
	events     *recordingPublisher
	orders     *OrderApplicationService
	settlement *SettlementService
	sweeper    *ReclamationSweeper
}

// newHarness 组装一套完整的订单服务，库存、优惠、订单共用一个内存库。
// wrap 可以替换订单看到的库存账本，用于注入故障。
func newHarness(t *testing.T, wrap func(port.StockLedger) port.StockLedger) *harness {
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

	var orderLedger port.StockLedger = ledger
	if wrap != nil {
		orderLedger = wrap(ledger)
	}
	repo := infrastructure.NewGormOrderRepository(db)
	events := &recordingPublisher{}
	deps := Dependencies{
		Repo:     repo,
		Tx:       txm,
		Ledger:   orderLedger,
		Catalog:  adapter.NewGormCatalog(db, ledger),
		Cart:     adapter.NewGormCart(db),
		Coupons:  adapter.NewPromotionCouponAdapter(promotions),
		Accounts: adapter.NewGormAccount(db),
		Gateway:  fakeGateway{},
		Notifier: events,
		Tracer:   tracer,
	}
	policy := invapp.CommitPolicy(retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Multiplier:     2,
	})
	require.NoError(t, db.Create(&infrastructure.AccountModel{ID: testUser, Username: "tomato", Name: "番茄", Tomato: 100}).Error)

	return &harness{
		t:          t,
		db:         db,
		ledger:     ledger,
		promotions: promotions,
		repo:       repo,
		events:     events,
		orders:     NewOrderApplicationService(deps, Options{TomatoRate: 10, StockPolicy: policy}),
		settlement: NewSettlementService(deps, nil, policy),
		sweeper:    NewReclamationSweeper(deps, 30*time.Minute, 100),
	}
}

// seedProduct 创建商品与 available 件库存
func (h *harness) seedProduct(id int64, price string, available int) {
	h.t.Helper()
	ctx := context.Background()
	require.NoError(h.t, h.db.Create(&infrastructure.ProductModel{ID: id, Title: "商品" + strconv.FormatInt(id, 10), Price: decimal.RequireFromString(price)}).Error)
	_, err := h.ledger.Initialize(ctx, id)
	require.NoError(h.t, err)
	if available > 0 {
		require.NoError(h.t, h.ledger.Restock(ctx, id, available))
	}
}

func (h *harness) seedCartItem(id, productID int64, qty int) {
	h.t.Helper()
	require.NoError(h.t, h.db.Create(&infrastructure.CartItemModel{ID: id, UserID: testUser, ProductID: productID, Quantity: qty}).Error)
}

// issueCoupon 创建一个满 threshold 减 reduce 的模板并发给测试用户
func (h *harness) issueCoupon(threshold, reduce string) int64 {
	h.t.Helper()
	ctx := context.Background()
	tpl, err := h.promotions.CreateTemplate(ctx, &promoapp.CreateTemplateRequest{
		Title:     "满减券",
		Type:      promodomain.CouponTypeFullReduction,
		Threshold: decimal.RequireFromString(threshold),
		Reduce:    decimal.RequireFromString(reduce),
		RestCnt:   10,
		ExpireAt:  time.Now().Add(24 * time.Hour),
	})
	require.NoError(h.t, err)
	coupon, err := h.promotions.IssueCoupon(ctx, testUser, tpl.ID)
	require.NoError(h.t, err)
	return coupon.ID
}

// stock 返回 (available, frozen)
func (h *harness) stock(productID int64) (int, int) {
	h.t.Helper()
	rec, err := h.ledger.Get(context.Background(), productID)
	require.NoError(h.t, err)
	return rec.Available, rec.Frozen
}

func (h *harness) order(id int64) *domain.Order {
	h.t.Helper()
	o, err := h.repo.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return o
}

func (h *harness) tomatoBalance() int {
	h.t.Helper()
	var acc infrastructure.AccountModel
	require.NoError(h.t, h.db.First(&acc, testUser).Error)
	return acc.Tomato
}

func (h *harness) checkout(cartItemIDs ...int64) *OrderResponse {
	h.t.Helper()
	resp, err := h.orders.Checkout(context.Background(), &CheckoutRequest{UserID: testUser, CartItemIDs: cartItemIDs})
	require.NoError(h.t, err)
	return resp
}

// paidCallback 构造一条验签可通过的支付成功通知
func paidCallback(orderID int64, amount string) url.Values {
	v := url.Values{}
	v.Set("trade_status", "TRADE_SUCCESS")
	v.Set("out_trade_no", FormatOutTradeNo(time.Now(), orderID))
	v.Set("total_amount", amount)
	v.Set("trade_no", "2026101822001400000000"+strconv.FormatInt(orderID, 10))
	v.Set("sign", fakeValidSign)
	return v
}

const fakeValidSign = "signed-by-gateway"

type fakeGateway struct{}

func (fakeGateway) CreatePaymentForm(_ context.Context, req port.PaymentFormRequest) (string, error) {
	return "<form>" + req.OutTradeNo + "|" + req.Subject + "|" + req.TotalAmount.StringFixed(2) + "</form>", nil
}

func (fakeGateway) VerifyCallback(params url.Values) error {
	if params.Get("sign") != fakeValidSign {
		return domain.ErrPaymentSignatureInvalid
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(typ domain.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// faultyLedger 在真实账本外包一层故障注入
type faultyLedger struct {
	port.StockLedger
	mu          sync.Mutex
	reserveErrs map[int64]error
	commitErr   error
	commits     int
	onCommit    func()
}

func (l *faultyLedger) Reserve(ctx context.Context, productID int64, qty int) error {
	if err := l.reserveErrs[productID]; err != nil {
		return err
	}
	return l.StockLedger.Reserve(ctx, productID, qty)
}

func (l *faultyLedger) Commit(ctx context.Context, productID int64, qty int) error {
	l.mu.Lock()
	l.commits++
	err := l.commitErr
	hook := l.onCommit
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	return l.StockLedger.Commit(ctx, productID, qty)
}
