package saga

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/service/order/domain"
)

// NotificationHandler 是 Saga 流程的最后一步，发布订单创建事件
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	span.SetAttributes(attribute.String("messaging.system", "kafka"))

	if orderCtx.Notifier != nil {
		order := orderCtx.Order
		err := orderCtx.Notifier.Publish(ctx, domain.OrderEvent{
			EventID:      uuid.NewString(),
			Type:         domain.EventOrderCreated,
			OrderID:      order.ID,
			UserID:       order.UserID,
			Status:       order.Status,
			TotalAmount:  order.TotalAmount,
			BuyTomatoCnt: order.BuyTomatoCnt,
			OccurredAt:   time.Now().UTC(),
		})
		// 订单已经落库，通知失败只记录不回滚
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("order_id", order.ID).Msg("failed to publish order created event")
			span.RecordError(err)
		}
	}

	return h.executeNext(orderCtx)
}
