package saga

import (
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

// PricingHandler 并发查询商品价格与可售数量，计算优惠前总额
type PricingHandler struct {
	NextHandler
}

func (h *PricingHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Pricing")
	defer span.End()

	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 2: 计算价格并校验库存...")

	lines := orderCtx.cartLines
	snapshots := make([]port.ProductSnapshot, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range lines {
		g.Go(func() error {
			snap, err := orderCtx.Catalog.GetProduct(gctx, line.ProductID)
			if err != nil {
				return err
			}
			snapshots[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog lookup failed")
		return err
	}

	before := decimal.Zero
	reservations := make([]*domain.LineReservation, 0, len(lines))
	for i, line := range lines {
		if line.Quantity > snapshots[i].Available {
			logger.Ctx(ctx).Warn().Int64("product_id", line.ProductID).Int("quantity", line.Quantity).Int("available", snapshots[i].Available).Msg("quantity exceeds stock")
			span.SetStatus(codes.Error, "quantity exceeds stock")
			return domain.ErrQuantityExceedsStock
		}
		before = before.Add(lineAmount(snapshots[i].Price, line.Quantity))
		reservations = append(reservations, &domain.LineReservation{
			CartItemID: line.CartItemID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			Status:     domain.LineReserved,
		})
	}
	orderCtx.Order.Lines = reservations
	orderCtx.Order.ApplyAmounts(before, decimal.Zero)
	span.SetAttributes(attribute.String("amount.before", before.String()))

	return h.executeNext(orderCtx)
}

// TomatoPricingHandler 按兑换比例计算番茄币订单的金额
type TomatoPricingHandler struct {
	NextHandler
}

func (h *TomatoPricingHandler) Handle(orderCtx *OrderContext) error {
	_, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.TomatoPricing")
	defer span.End()

	cnt := orderCtx.Input.TomatoCount
	if cnt <= 0 || orderCtx.TomatoRate <= 0 {
		span.SetStatus(codes.Error, "illegal tomato count")
		return domain.ErrTomatoCountIllegal
	}
	before := decimal.NewFromInt(int64(cnt)).DivRound(decimal.NewFromInt(int64(orderCtx.TomatoRate)), 2)
	orderCtx.Order.BuyTomatoCnt = cnt
	orderCtx.Order.ApplyAmounts(before, decimal.Zero)
	span.SetAttributes(attribute.Int("tomato.count", cnt), attribute.String("amount.before", before.String()))

	return h.executeNext(orderCtx)
}
