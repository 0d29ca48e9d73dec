// internal/service/order/domain/port/coupon.go
package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// CouponQuote 用券后的金额拆分
type CouponQuote struct {
	BeforeAmount  decimal.Decimal
	ReducedAmount decimal.Decimal
	FinalAmount   decimal.Decimal
}

// CouponApplier 校验并核销优惠券。核销成功后券即被消耗。
type CouponApplier interface {
	ApplyCoupon(ctx context.Context, userID, couponID int64, total decimal.Decimal) (CouponQuote, error)
}
