package domain

import "errors"

var (
	ErrStockNotFound = errors.New("库存记录不存在")
	// ErrInsufficientStock 可售库存不足以预占
	ErrInsufficientStock = errors.New("商品数量超出库存数")
	// ErrInsufficientFrozen 预占数量不足以结算或释放，不可重试
	ErrInsufficientFrozen = errors.New("减少库存失败")
	// ErrOptimisticLockConflict 读取后库存行已被其他写入修改，可重试
	ErrOptimisticLockConflict = errors.New("库存扣减冲突，请稍后重试")
	ErrInvalidQuantity        = errors.New("数量必须大于 0")
	ErrStockAlreadyExists     = errors.New("库存记录已存在")
)
