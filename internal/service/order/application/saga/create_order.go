package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tomatomall/internal/pkg/logger"
)

// CreateOrderHandler 在同一事务中核销优惠券并持久化订单，二者同成同败
type CreateOrderHandler struct {
	NextHandler
}

func (h *CreateOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreateOrder")
	defer span.End()

	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 4: 用券并创建订单...")

	order := orderCtx.Order
	err := orderCtx.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if couponID := orderCtx.Input.CouponID; couponID != nil {
			quote, err := orderCtx.Coupons.ApplyCoupon(ctx, order.UserID, *couponID, order.BeforeAmount)
			if err != nil {
				return err
			}
			order.ApplyAmounts(quote.BeforeAmount, quote.ReducedAmount)
			order.CouponID = couponID
		}
		return orderCtx.Repo.Create(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		return errors.Wrap(err, "create order")
	}
	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("amount.total", order.TotalAmount.String()),
	)
	span.AddEvent("Pending order saved to DB.")

	return h.executeNext(orderCtx)
}
