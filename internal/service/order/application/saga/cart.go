package saga

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/service/order/domain"
)

// CartHandler 读取本次结算涉及的购物车行
type CartHandler struct {
	NextHandler
}

func (h *CartHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.LoadCart")
	defer span.End()

	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 1: 读取购物车...")

	if len(orderCtx.Input.CartItemIDs) == 0 {
		span.SetStatus(codes.Error, "empty checkout")
		return domain.ErrEmptyCheckout
	}
	lines, err := orderCtx.Cart.FindLines(ctx, orderCtx.Input.UserID, orderCtx.Input.CartItemIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load cart failed")
		return err
	}
	if len(lines) == 0 {
		return domain.ErrEmptyCheckout
	}
	span.SetAttributes(attribute.Int("cart.lines", len(lines)))
	orderCtx.cartLines = lines

	return h.executeNext(orderCtx)
}
