package saga

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/retry"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

// CheckoutInput 是下单请求中与流程相关的参数
type CheckoutInput struct {
	UserID      int64
	CartItemIDs []int64
	CouponID    *int64
	// TomatoCount 大于 0 时走番茄币购买流程
	TomatoCount int
}

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是出站端口，步骤之间只通过 Order 和 Lines 交换数据。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order
	Tracer trace.Tracer
	Input  CheckoutInput

	Cart     port.CartReader
	Catalog  port.Catalog
	Ledger   port.StockLedger
	Coupons  port.CouponApplier
	Repo     domain.OrderRepository
	Tx       port.Transactor
	Notifier port.EventPublisher

	// ReleasePolicy 补偿释放库存时使用的重试策略
	ReleasePolicy retry.Policy
	TomatoRate    int

	cartLines []port.CartLine

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 注册补偿动作，后注册的先执行
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 逆序执行全部补偿动作，执行后清空
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	if len(c.compensations) == 0 {
		return
	}
	logger.Ctx(ctx).Info().Int64("user_id", c.Input.UserID).Int("count", len(c.compensations)).Msg("executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

// Handler 是责任链中的一个步骤
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// BuildCheckoutChain 购物车结算：读取购物车 → 计价校验 → 预占库存 → 用券并落库 → 通知
func BuildCheckoutChain() Handler {
	head := new(CartHandler)
	head.
		SetNext(new(PricingHandler)).
		SetNext(new(InventoryHandler)).
		SetNext(new(CreateOrderHandler)).
		SetNext(new(NotificationHandler))
	return head
}

// BuildTomatoChain 购买番茄币：计价 → 用券并落库 → 通知
func BuildTomatoChain() Handler {
	head := new(TomatoPricingHandler)
	head.
		SetNext(new(CreateOrderHandler)).
		SetNext(new(NotificationHandler))
	return head
}

func lineAmount(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
