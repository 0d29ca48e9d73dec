// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"tomatomall/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	UserID        int64           `gorm:"not null;index"`
	BeforeAmount  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ReducedAmount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentMethod string          `gorm:"type:varchar(50);not null"`
	// (status, created_at) 复合索引服务于超时回收的扫描
	Status       string `gorm:"type:varchar(20);not null;index:idx_orders_status_created,priority:1"`
	CouponID     *int64
	BuyTomatoCnt int    `gorm:"not null;default:0"`
	TradeNo      string `gorm:"type:varchar(64)"`
	PaidAt       *time.Time
	CreatedAt    time.Time `gorm:"index:idx_orders_status_created,priority:2"`
	UpdatedAt    time.Time

	Lines []LineReservationModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// LineReservationModel 对应 line_reservations 表，每行是一条库存预占记录
type LineReservationModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	OrderID    int64  `gorm:"not null;index"`
	CartItemID int64  `gorm:"not null"`
	ProductID  int64  `gorm:"not null"`
	Quantity   int    `gorm:"not null"`
	Status     string `gorm:"type:varchar(20);not null"`
	UpdatedAt  time.Time
}

func (LineReservationModel) TableName() string {
	return "line_reservations"
}

// 以下是订单服务只读（或只做原子增量）的外部表

// ProductModel 对应 products 表
type ProductModel struct {
	ID    int64           `gorm:"primaryKey"`
	Title string          `gorm:"type:varchar(50);not null"`
	Price decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

func (ProductModel) TableName() string {
	return "products"
}

// CartItemModel 对应 carts 表，ID 即购物车商品 ID
type CartItemModel struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"not null;index"`
	ProductID int64 `gorm:"not null"`
	Quantity  int   `gorm:"not null;default:1"`
}

func (CartItemModel) TableName() string {
	return "carts"
}

// AccountModel 对应 accounts 表中订单服务关心的列
type AccountModel struct {
	ID       int64  `gorm:"primaryKey"`
	Username string `gorm:"type:varchar(50);not null"`
	Name     string `gorm:"type:varchar(50);not null"`
	Tomato   int    `gorm:"not null;default:0"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:            o.ID,
		UserID:        o.UserID,
		BeforeAmount:  o.BeforeAmount,
		ReducedAmount: o.ReducedAmount,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Status:        string(o.Status),
		CouponID:      o.CouponID,
		BuyTomatoCnt:  o.BuyTomatoCnt,
		TradeNo:       o.TradeNo,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, l := range o.Lines {
		m.Lines = append(m.Lines, LineReservationModel{
			ID:         l.ID,
			OrderID:    l.OrderID,
			CartItemID: l.CartItemID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			Status:     string(l.Status),
		})
	}
	return m
}

func toOrderDomain(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		BeforeAmount:  m.BeforeAmount,
		ReducedAmount: m.ReducedAmount,
		TotalAmount:   m.TotalAmount,
		PaymentMethod: m.PaymentMethod,
		Status:        domain.Status(m.Status),
		CouponID:      m.CouponID,
		BuyTomatoCnt:  m.BuyTomatoCnt,
		TradeNo:       m.TradeNo,
		PaidAt:        m.PaidAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, l := range m.Lines {
		o.Lines = append(o.Lines, &domain.LineReservation{
			ID:         l.ID,
			OrderID:    l.OrderID,
			CartItemID: l.CartItemID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			Status:     domain.LineStatus(l.Status),
		})
	}
	return o
}
