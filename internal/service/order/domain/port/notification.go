// internal/service/order/domain/port/notification.go
package port

import (
	"context"

	"tomatomall/internal/service/order/domain"
)

// EventPublisher 发布订单生命周期事件
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
