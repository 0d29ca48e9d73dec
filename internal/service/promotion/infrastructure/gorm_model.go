package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"tomatomall/internal/service/promotion/domain"
)

// CouponTemplateModel 对应数据库中的 coupon_templates 表
type CouponTemplateModel struct {
	ID             int64 `gorm:"primaryKey"`
	Title          string
	Description    string
	Type           domain.CouponType `gorm:"type:varchar(32)"`
	Threshold      decimal.Decimal   `gorm:"type:decimal(10,2)"`
	Reduce         decimal.Decimal   `gorm:"type:decimal(10,2)"`
	InUse          bool              `gorm:"index"`
	RestCnt        int
	ExpireAt       time.Time `gorm:"index"`
	RuleDefinition string    `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CouponTemplateModel) TableName() string {
	return "coupon_templates"
}

// CouponModel 对应数据库中的 coupons 表，使用即物理删除
type CouponModel struct {
	ID         int64 `gorm:"primaryKey"`
	UserID     int64 `gorm:"index"`
	TemplateID int64 `gorm:"index"`
	CreatedAt  time.Time
	// 关联关系
	Template CouponTemplateModel `gorm:"foreignKey:TemplateID"`
}

// TableName 指定 GORM 应该使用的表名
func (CouponModel) TableName() string {
	return "coupons"
}
