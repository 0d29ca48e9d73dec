// internal/service/order/domain/port/inventory.go
package port

import "context"

// StockLedger 定义了订单服务依赖的库存账本操作
type StockLedger interface {
	Reserve(ctx context.Context, productID int64, qty int) error
	Release(ctx context.Context, productID int64, qty int) error
	Commit(ctx context.Context, productID int64, qty int) error
}
