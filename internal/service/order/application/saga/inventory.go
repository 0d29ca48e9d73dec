package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/retry"
	"tomatomall/internal/service/order/domain"
)

// InventoryHandler 逐行预占库存，每预占成功一行就注册一个释放补偿
type InventoryHandler struct {
	NextHandler
}

func (h *InventoryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.InventoryReserve")
	defer span.End()

	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 3: 预占库存...")

	for _, line := range orderCtx.Order.Lines {
		if err := orderCtx.Ledger.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Inventory reservation failed")
			return err
		}
		orderCtx.AddCompensation(releaseCompensation(orderCtx, line))
	}
	span.AddEvent("All items reserved successfully")

	return h.executeNext(orderCtx)
}

func releaseCompensation(orderCtx *OrderContext, line *domain.LineReservation) func(ctx context.Context) {
	return func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseStock", trace.WithAttributes(
			attribute.Int64("product.id", line.ProductID),
			attribute.Int("quantity", line.Quantity),
		))
		defer compSpan.End()

		err := retry.Do(compCtx, orderCtx.ReleasePolicy, func(ctx context.Context, _ int) error {
			return orderCtx.Ledger.Release(ctx, line.ProductID, line.Quantity)
		})
		if err != nil {
			// 补偿失败需要人工介入
			compSpan.RecordError(err, trace.WithAttributes(attribute.Bool("critical.error", true)))
			compSpan.SetStatus(codes.Error, "release stock failed")
			logger.Ctx(compCtx).Error().Err(err).Int64("product_id", line.ProductID).Int("quantity", line.Quantity).Msg("CRITICAL: compensation release failed")
			return
		}
		line.Status = domain.LineReleased
	}
}
