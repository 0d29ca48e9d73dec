// internal/service/promotion/domain/coupon.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponType 定义了优惠券的计算方式
type CouponType string

const (
	// CouponTypeFullReduction 满减：满 Threshold 减 Reduce
	CouponTypeFullReduction CouponType = "FULL_REDUCTION"
)

// CouponTemplate 是可重复发放的优惠规则
type CouponTemplate struct {
	ID          int64
	Title       string
	Description string
	Type        CouponType
	Threshold   decimal.Decimal
	Reduce      decimal.Decimal
	InUse       bool
	// RestCnt 剩余可发放数量
	RestCnt  int
	ExpireAt time.Time
	// RuleDefinition 是一个可选的 CEL 表达式，定义了此优惠的额外适用条件，
	// 可用变量为 total (double) 与 user_id (int)。为空表示无额外条件。
	RuleDefinition string
	CreatedAt      time.Time
}

// Validate 校验模板自身的不变量
func (t *CouponTemplate) Validate(now time.Time) error {
	if t.Type != CouponTypeFullReduction {
		return ErrUnsupportedCouponType
	}
	if !t.Reduce.IsPositive() {
		return ErrInvalidTemplate
	}
	// 减免额必须严格小于门槛
	if !t.Reduce.LessThan(t.Threshold) {
		return ErrInvalidTemplate
	}
	if t.RestCnt < 0 {
		return ErrInvalidTemplate
	}
	if !t.ExpireAt.After(now) {
		return ErrInvalidTemplate
	}
	return nil
}

// Expired 判断模板在 now 时刻是否已过期
func (t *CouponTemplate) Expired(now time.Time) bool {
	return !now.Before(t.ExpireAt)
}

// Quote 计算在 candidateTotal 上使用该模板的结果，不产生副作用
func (t *CouponTemplate) Quote(candidateTotal decimal.Decimal) (Quote, error) {
	if t.Type != CouponTypeFullReduction {
		return Quote{}, ErrUnsupportedCouponType
	}
	// 门槛是非严格比较：恰好等于门槛可以使用
	if candidateTotal.LessThan(t.Threshold) {
		return Quote{}, ErrThresholdNotReached
	}
	return Quote{
		BeforeAmount:  candidateTotal,
		ReducedAmount: t.Reduce,
		FinalAmount:   candidateTotal.Sub(t.Reduce),
	}, nil
}

// Coupon 是发放给某个用户的一张优惠券，使用即删除
type Coupon struct {
	ID         int64
	UserID     int64
	TemplateID int64
	Template   *CouponTemplate
	CreatedAt  time.Time
}

// Quote 是使用优惠券后的金额拆分
type Quote struct {
	BeforeAmount  decimal.Decimal
	ReducedAmount decimal.Decimal
	FinalAmount   decimal.Decimal
}

// NoDiscount 返回未使用优惠券时的金额拆分
func NoDiscount(total decimal.Decimal) Quote {
	return Quote{BeforeAmount: total, ReducedAmount: decimal.Zero, FinalAmount: total}
}
