package adapter

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	invdomain "tomatomall/internal/service/inventory/domain"
	"tomatomall/internal/service/order/domain/port"
	"tomatomall/internal/service/order/infrastructure"
)

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("商品不存在")

// StockReader 读取商品当前库存
type StockReader interface {
	Get(ctx context.Context, productID int64) (*invdomain.StockRecord, error)
}

// GormCatalog 从 products 表读取价格，从库存账本读取可售数量
type GormCatalog struct {
	db    *gorm.DB
	stock StockReader
}

func NewGormCatalog(db *gorm.DB, stock StockReader) *GormCatalog {
	return &GormCatalog{db: db, stock: stock}
}

func (c *GormCatalog) GetProduct(ctx context.Context, productID int64) (port.ProductSnapshot, error) {
	snap, err := c.getListing(ctx, productID)
	if err != nil {
		return port.ProductSnapshot{}, err
	}
	return withAvailability(ctx, c.stock, snap)
}

func (c *GormCatalog) getListing(ctx context.Context, productID int64) (port.ProductSnapshot, error) {
	var model infrastructure.ProductModel
	err := database.Conn(ctx, c.db).Where("id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return port.ProductSnapshot{}, ErrProductNotFound
		}
		return port.ProductSnapshot{}, errors.Wrapf(err, "find product %d", productID)
	}
	return port.ProductSnapshot{ProductID: model.ID, Title: model.Title, Price: model.Price}, nil
}

// withAvailability 可售数量必须实时读取，不走缓存
func withAvailability(ctx context.Context, stock StockReader, snap port.ProductSnapshot) (port.ProductSnapshot, error) {
	rec, err := stock.Get(ctx, snap.ProductID)
	if err != nil {
		return port.ProductSnapshot{}, err
	}
	snap.Available = rec.Available
	return snap, nil
}
