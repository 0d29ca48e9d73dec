// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/pkg/retry"
	"tomatomall/internal/service/order/application/saga"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

const defaultPaymentMethod = "Alipay"

// Options 是订单服务的可调参数
type Options struct {
	// TomatoRate 1 元可兑换的番茄币数量
	TomatoRate int
	// StockPolicy 结算与释放库存时的重试策略，Retryable 决定哪些错误值得重试
	StockPolicy retry.Policy
}

// Dependencies 聚合了订单服务依赖的全部出站端口
type Dependencies struct {
	Repo     domain.OrderRepository
	Tx       port.Transactor
	Ledger   port.StockLedger
	Catalog  port.Catalog
	Cart     port.CartReader
	Coupons  port.CouponApplier
	Accounts port.AccountService
	Gateway  port.PaymentGateway
	Notifier port.EventPublisher
	Tracer   trace.Tracer
}

// OrderApplicationService 编排下单、支付、取消等用例
type OrderApplicationService struct {
	Dependencies
	opts Options
	now  func() time.Time
}

func NewOrderApplicationService(deps Dependencies, opts Options) *OrderApplicationService {
	return &OrderApplicationService{
		Dependencies: deps,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Checkout 把若干购物车行结算为一笔待支付订单。
// 任何一步失败都会逆序释放已预占的库存，不留下订单。
func (s *OrderApplicationService) Checkout(ctx context.Context, req *CheckoutRequest) (*OrderResponse, error) {
	ctx, span := s.Tracer.Start(ctx, "app.Checkout", trace.WithAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int("cart.items", len(req.CartItemIDs)),
	))
	defer span.End()

	order := domain.NewOrder(req.UserID, paymentMethodOrDefault(req.PaymentMethod), nil, s.now())
	input := saga.CheckoutInput{UserID: req.UserID, CartItemIDs: req.CartItemIDs, CouponID: req.CouponID}
	if err := s.runSaga(ctx, "cart", order, input, saga.BuildCheckoutChain()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	return toOrderResponse(order), nil
}

// BuyTomato 创建一笔购买番茄币的待支付订单，不涉及库存
func (s *OrderApplicationService) BuyTomato(ctx context.Context, req *BuyTomatoRequest) (*OrderResponse, error) {
	ctx, span := s.Tracer.Start(ctx, "app.BuyTomato", trace.WithAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int("tomato.count", req.TomatoCount),
	))
	defer span.End()

	order, err := domain.NewTomatoOrder(req.UserID, paymentMethodOrDefault(req.PaymentMethod), req.TomatoCount, s.now())
	if err != nil {
		metrics.CheckoutTotal.WithLabelValues("tomato", "rejected").Inc()
		span.SetStatus(codes.Error, "illegal tomato count")
		return nil, err
	}
	input := saga.CheckoutInput{UserID: req.UserID, CouponID: req.CouponID, TomatoCount: req.TomatoCount}
	if err := s.runSaga(ctx, "tomato", order, input, saga.BuildTomatoChain()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "buy tomato failed")
		return nil, err
	}
	return toOrderResponse(order), nil
}

func (s *OrderApplicationService) runSaga(ctx context.Context, kind string, order *domain.Order, input saga.CheckoutInput, chain saga.Handler) error {
	start := time.Now()
	defer func() { metrics.CheckoutDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds()) }()

	orderCtx := &saga.OrderContext{
		Ctx:           ctx,
		Order:         order,
		Tracer:        s.Tracer,
		Input:         input,
		Cart:          s.Cart,
		Catalog:       s.Catalog,
		Ledger:        s.Ledger,
		Coupons:       s.Coupons,
		Repo:          s.Repo,
		Tx:            s.Tx,
		Notifier:      s.Notifier,
		ReleasePolicy: s.opts.StockPolicy,
		TomatoRate:    s.opts.TomatoRate,
	}
	if err := chain.Handle(orderCtx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("kind", kind).Int64("user_id", input.UserID).Msg("checkout chain failed, compensating")
		// 客户端断开不应打断补偿
		orderCtx.TriggerCompensation(context.WithoutCancel(ctx))
		metrics.CheckoutTotal.WithLabelValues(kind, "rejected").Inc()
		return err
	}
	metrics.CheckoutTotal.WithLabelValues(kind, "created").Inc()
	logger.Ctx(ctx).Info().Str("kind", kind).Int64("order_id", order.ID).Str("total", order.TotalAmount.String()).Msg("✅ order created, pending payment")
	return nil
}

// CancelOrder 取消一笔待支付订单：释放全部预占库存并置为 FAILED，二者在同一事务内完成
func (s *OrderApplicationService) CancelOrder(ctx context.Context, userID, orderID int64) error {
	ctx, span := s.Tracer.Start(ctx, "app.CancelOrder", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load order failed")
		return err
	}
	if order.Status != domain.StatusPending {
		return domain.ErrOrderNotPending
	}
	released, err := closePending(ctx, s.Tx, s.Repo, s.Ledger, order, domain.StatusFailed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel order failed")
		return err
	}
	if !released {
		return domain.ErrOrderNotPending
	}
	s.publish(ctx, domain.EventOrderCancelled, order)
	logger.Ctx(ctx).Info().Int64("order_id", orderID).Msg("order cancelled, stock released")
	return nil
}

// Pay 为待支付订单生成支付表单
func (s *OrderApplicationService) Pay(ctx context.Context, userID, orderID int64) (*PaymentFormResponse, error) {
	ctx, span := s.Tracer.Start(ctx, "app.Pay", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.Status != domain.StatusPending {
		return nil, domain.ErrOrderNotPending
	}
	name, err := s.Accounts.DisplayName(ctx, order.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	form, err := s.Gateway.CreatePaymentForm(ctx, port.PaymentFormRequest{
		OutTradeNo:  FormatOutTradeNo(s.now(), order.ID),
		TotalAmount: order.TotalAmount,
		Subject:     fmt.Sprintf("%s的支付订单#%d", name, order.ID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment form failed")
		return nil, errors.Wrap(err, "create payment form")
	}
	return &PaymentFormResponse{
		PaymentForm:   form,
		OrderID:       order.ID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
	}, nil
}

// GetOrder 查询当前用户的一笔订单
func (s *OrderApplicationService) GetOrder(ctx context.Context, userID, orderID int64) (*OrderResponse, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return toOrderResponse(order), nil
}

// ListOrders 查询当前用户的全部订单，按创建时间倒序
func (s *OrderApplicationService) ListOrders(ctx context.Context, userID int64) ([]*OrderResponse, error) {
	orders, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out, nil
}

// loadOwned 读取订单，不属于 userID 的订单视同不存在
func (s *OrderApplicationService) loadOwned(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.Repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.BelongsTo(userID) {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderApplicationService) publish(ctx context.Context, typ domain.EventType, order *domain.Order) {
	publishEvent(ctx, s.Notifier, typ, order)
}

func publishEvent(ctx context.Context, notifier port.EventPublisher, typ domain.EventType, order *domain.Order) {
	if notifier == nil {
		return
	}
	err := notifier.Publish(ctx, domain.OrderEvent{
		EventID:      uuid.NewString(),
		Type:         typ,
		OrderID:      order.ID,
		UserID:       order.UserID,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		BuyTomatoCnt: order.BuyTomatoCnt,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("type", string(typ)).Int64("order_id", order.ID).Msg("failed to publish order event")
	}
}

func paymentMethodOrDefault(m string) string {
	if m == "" {
		return defaultPaymentMethod
	}
	return m
}
