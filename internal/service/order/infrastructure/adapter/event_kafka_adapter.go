package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"tomatomall/internal/pkg/mq"
	"tomatomall/internal/service/order/domain"
)

const eventTypeHeader = "event-type"

// OrderEventKafkaAdapter 实现了 port.EventPublisher，按订单 ID 分区保证同一订单的事件有序
type OrderEventKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewOrderEventKafkaAdapter(writer mq.MessageWriter) *OrderEventKafkaAdapter {
	return &OrderEventKafkaAdapter{writer: writer}
}

func (a *OrderEventKafkaAdapter) Publish(ctx context.Context, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer,
		[]byte(strconv.FormatInt(event.OrderID, 10)),
		payload,
		kafka.Header{Key: eventTypeHeader, Value: []byte(event.Type)},
	)
}
