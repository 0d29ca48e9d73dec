package adapter

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
	"tomatomall/internal/service/order/infrastructure"
)

// GormCart 读取 carts 表
type GormCart struct {
	db *gorm.DB
}

func NewGormCart(db *gorm.DB) *GormCart {
	return &GormCart{db: db}
}

// FindLines 按请求顺序返回购物车行，重复的 ID 只取一次
func (c *GormCart) FindLines(ctx context.Context, userID int64, cartItemIDs []int64) ([]port.CartLine, error) {
	var models []infrastructure.CartItemModel
	err := database.Conn(ctx, c.db).
		Where("user_id = ? AND id IN ?", userID, cartItemIDs).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "find cart items")
	}
	byID := make(map[int64]infrastructure.CartItemModel, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	seen := make(map[int64]bool, len(cartItemIDs))
	lines := make([]port.CartLine, 0, len(cartItemIDs))
	for _, id := range cartItemIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		m, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(domain.ErrCartItemNotFound, "cart item %d", id)
		}
		lines = append(lines, port.CartLine{CartItemID: m.ID, ProductID: m.ProductID, Quantity: m.Quantity})
	}
	return lines, nil
}
