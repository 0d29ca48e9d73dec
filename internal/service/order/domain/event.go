// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType 订单生命周期事件类型
type EventType string

const (
	EventOrderCreated   EventType = "ORDER_CREATED"
	EventOrderPaid      EventType = "ORDER_PAID"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	EventOrderTimedOut  EventType = "ORDER_TIMED_OUT"
)

// OrderEvent 是发布到消息总线的订单事件
type OrderEvent struct {
	EventID      string          `json:"eventId"`
	Type         EventType       `json:"type"`
	OrderID      int64           `json:"orderId"`
	UserID       int64           `json:"userId"`
	Status       Status          `json:"status"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	BuyTomatoCnt int             `json:"buyTomatoCnt,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
}
