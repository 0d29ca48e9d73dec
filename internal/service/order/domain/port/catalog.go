// internal/service/order/domain/port/catalog.go
package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductSnapshot 是结算时读取到的商品价格与可售数量
type ProductSnapshot struct {
	ProductID int64
	Title     string
	Price     decimal.Decimal
	Available int
}

// Catalog 是商品目录的只读查询接口
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (ProductSnapshot, error)
}

// CartLine 是购物车中的一行
type CartLine struct {
	CartItemID int64
	ProductID  int64
	Quantity   int
}

// CartReader 按用户读取购物车行
type CartReader interface {
	// FindLines 返回 userID 名下的指定购物车行，任一行不存在时返回错误
	FindLines(ctx context.Context, userID int64, cartItemIDs []int64) ([]CartLine, error)
}
