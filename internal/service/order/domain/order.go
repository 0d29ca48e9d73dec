// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 是订单聚合的根实体
type Order struct {
	ID     int64
	UserID int64

	BeforeAmount  decimal.Decimal // 优惠前总额
	ReducedAmount decimal.Decimal // 优惠金额，未用券时为 0
	TotalAmount   decimal.Decimal // 应付金额 = BeforeAmount - ReducedAmount

	PaymentMethod string
	Status        Status
	CouponID      *int64
	// BuyTomatoCnt 大于 0 表示这是一笔购买番茄币的订单，不涉及商品库存
	BuyTomatoCnt int

	TradeNo   string
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []*LineReservation
}

// LineReservation 记录订单冻结了哪个商品的多少库存，结算或回收时据此操作
type LineReservation struct {
	ID         int64
	OrderID    int64
	CartItemID int64
	ProductID  int64
	Quantity   int
	Status     LineStatus
}

// NewOrder 工厂函数：创建一笔待支付的商品订单
func NewOrder(userID int64, paymentMethod string, lines []*LineReservation, now time.Time) *Order {
	for _, l := range lines {
		l.Status = LineReserved
	}
	return &Order{
		UserID:        userID,
		PaymentMethod: paymentMethod,
		Status:        StatusPending,
		BeforeAmount:  decimal.Zero,
		ReducedAmount: decimal.Zero,
		TotalAmount:   decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
		Lines:         lines,
	}
}

// NewTomatoOrder 工厂函数：创建一笔购买番茄币的订单
func NewTomatoOrder(userID int64, paymentMethod string, cnt int, now time.Time) (*Order, error) {
	if cnt <= 0 {
		return nil, ErrTomatoCountIllegal
	}
	o := NewOrder(userID, paymentMethod, nil, now)
	o.BuyTomatoCnt = cnt
	return o, nil
}

// IsTomatoPurchase 判断是否为番茄币订单
func (o *Order) IsTomatoPurchase() bool {
	return o.BuyTomatoCnt > 0
}

// ApplyAmounts 写入金额拆分，只允许在待支付状态下调用
func (o *Order) ApplyAmounts(before, reduced decimal.Decimal) {
	o.BeforeAmount = before
	o.ReducedAmount = reduced
	o.TotalAmount = before.Sub(reduced)
}

// BelongsTo 判断订单是否属于 userID
func (o *Order) BelongsTo(userID int64) bool {
	return o.UserID == userID
}

// ReservedLines 返回仍处于冻结状态的预占记录
func (o *Order) ReservedLines() []*LineReservation {
	var out []*LineReservation
	for _, l := range o.Lines {
		if l.Status == LineReserved {
			out = append(out, l)
		}
	}
	return out
}
