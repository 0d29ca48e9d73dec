package domain

import "context"

// StockRepository 定义库存行的持久化契约
type StockRepository interface {
	FindByProductID(ctx context.Context, productID int64) (*StockRecord, error)
	Create(ctx context.Context, rec *StockRecord) error
	// CompareAndSwap 仅当存储中的版本仍为 expectedVersion 时写入 rec 的数量，
	// 成功后 rec.Version 变为 expectedVersion+1；否则返回 ErrOptimisticLockConflict。
	CompareAndSwap(ctx context.Context, rec *StockRecord, expectedVersion int64) error
}
