package infrastructure

import (
	"time"

	"tomatomall/internal/service/inventory/domain"
)

// StockRecordModel 对应数据库中的 stockpiles 表
type StockRecordModel struct {
	ProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	Available int   `gorm:"not null;default:0"`
	Frozen    int   `gorm:"not null;default:0"`
	Version   int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (StockRecordModel) TableName() string {
	return "stockpiles"
}

func toDomain(m *StockRecordModel) *domain.StockRecord {
	return &domain.StockRecord{
		ProductID: m.ProductID,
		Available: m.Available,
		Frozen:    m.Frozen,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
}
