package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tomatomall/internal/pkg/database"
	"tomatomall/internal/service/inventory/domain"
)

// GormStockRepository 是 StockRepository 的 GORM 实现。
// 所有写入都是带版本条件的单行 UPDATE，不使用行锁。
type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) FindByProductID(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	var model StockRecordModel
	err := database.Conn(ctx, r.db).Where("product_id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStockNotFound
		}
		return nil, errors.Wrapf(err, "find stock of product %d", productID)
	}
	return toDomain(&model), nil
}

func (r *GormStockRepository) Create(ctx context.Context, rec *domain.StockRecord) error {
	model := StockRecordModel{
		ProductID: rec.ProductID,
		Available: rec.Available,
		Frozen:    rec.Frozen,
		Version:   rec.Version,
	}
	if err := database.Conn(ctx, r.db).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrStockAlreadyExists
		}
		// 部分驱动不会翻译唯一键错误，这里再确认一次
		if _, findErr := r.FindByProductID(ctx, rec.ProductID); findErr == nil {
			return domain.ErrStockAlreadyExists
		}
		return errors.Wrapf(err, "create stock of product %d", rec.ProductID)
	}
	rec.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormStockRepository) CompareAndSwap(ctx context.Context, rec *domain.StockRecord, expectedVersion int64) error {
	res := database.Conn(ctx, r.db).
		Model(&StockRecordModel{}).
		Where("product_id = ? AND version = ?", rec.ProductID, expectedVersion).
		Updates(map[string]interface{}{
			"available": rec.Available,
			"frozen":    rec.Frozen,
			"version":   expectedVersion + 1,
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update stock of product %d", rec.ProductID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOptimisticLockConflict
	}
	rec.Version = expectedVersion + 1
	return nil
}
