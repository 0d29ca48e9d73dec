// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合（含预占记录）的持久化接口。
// 所有状态变更都是带前置状态条件的更新，返回值表示本次调用是否真正完成了变更。
type OrderRepository interface {
	// Create 保存新订单及其预占记录，回填 ID
	Create(ctx context.Context, order *Order) error
	// FindByID 返回订单及其预占记录
	FindByID(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	// FindExpiredPending 返回创建时间早于 before、id 大于 afterID 的待支付订单（含预占记录），按 id 升序
	FindExpiredPending(ctx context.Context, before time.Time, afterID int64, limit int) ([]*Order, error)

	TransitionStatus(ctx context.Context, id int64, from, to Status) (bool, error)
	// MarkPaid 把待支付订单置为 SUCCESS 并记录支付流水号
	MarkPaid(ctx context.Context, id int64, tradeNo string, paidAt time.Time) (bool, error)
	TransitionLine(ctx context.Context, lineID int64, from, to LineStatus) (bool, error)
}
