// internal/service/inventory/domain/stock.go
package domain

import "time"

// StockRecord 是单个商品的库存行。
// Available 为可售数量，Frozen 为已下单未结算的预占数量，二者始终非负。
// Version 每次写入递增，用于乐观锁。
type StockRecord struct {
	ProductID int64
	Available int
	Frozen    int
	Version   int64
	UpdatedAt time.Time
}

// NewStockRecord 商品创建时初始化为 0/0
func NewStockRecord(productID int64) *StockRecord {
	return &StockRecord{ProductID: productID}
}

// Reserve 预占：available -= qty, frozen += qty
func (s *StockRecord) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if s.Available < qty {
		return ErrInsufficientStock
	}
	s.Available -= qty
	s.Frozen += qty
	return nil
}

// Release 释放预占：available += qty, frozen -= qty
func (s *StockRecord) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if s.Frozen < qty {
		return ErrInsufficientFrozen
	}
	s.Available += qty
	s.Frozen -= qty
	return nil
}

// Commit 结算：frozen -= qty。available 在预占时已经扣减，这里不再变化。
func (s *StockRecord) Commit(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if s.Frozen < qty {
		return ErrInsufficientFrozen
	}
	s.Frozen -= qty
	return nil
}

// Restock 补货：available += qty
func (s *StockRecord) Restock(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	s.Available += qty
	return nil
}
