package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	"tomatomall/internal/service/order/domain/port"
	promodomain "tomatomall/internal/service/promotion/domain"
)

// CouponService 是优惠服务中订单依赖的用例
type CouponService interface {
	ApplyCoupon(ctx context.Context, userID, couponID int64, candidateTotal decimal.Decimal) (promodomain.Quote, error)
}

// PromotionCouponAdapter 把优惠服务的 Quote 转换为订单端口的 CouponQuote。
// 进程内调用，ctx 中的事务会一并传入，券的删除与订单插入同成同败。
type PromotionCouponAdapter struct {
	svc CouponService
}

func NewPromotionCouponAdapter(svc CouponService) *PromotionCouponAdapter {
	return &PromotionCouponAdapter{svc: svc}
}

func (a *PromotionCouponAdapter) ApplyCoupon(ctx context.Context, userID, couponID int64, total decimal.Decimal) (port.CouponQuote, error) {
	q, err := a.svc.ApplyCoupon(ctx, userID, couponID, total)
	if err != nil {
		return port.CouponQuote{}, err
	}
	return port.CouponQuote{
		BeforeAmount:  q.BeforeAmount,
		ReducedAmount: q.ReducedAmount,
		FinalAmount:   q.FinalAmount,
	}, nil
}
