// internal/service/order/application/dto.go
package application

import (
	"time"

	"github.com/shopspring/decimal"

	"tomatomall/internal/service/order/domain"
)

// CheckoutRequest 是购物车结算用例的输入
type CheckoutRequest struct {
	UserID        int64   `json:"-"`
	CartItemIDs   []int64 `json:"cartItemIds"`
	PaymentMethod string  `json:"paymentMethod"`
	CouponID      *int64  `json:"couponId,omitempty"`
}

// BuyTomatoRequest 是购买番茄币用例的输入
type BuyTomatoRequest struct {
	UserID        int64  `json:"-"`
	TomatoCount   int    `json:"tomatoCount"`
	PaymentMethod string `json:"paymentMethod"`
	CouponID      *int64 `json:"couponId,omitempty"`
}

// OrderResponse 是订单对外展示的视图
type OrderResponse struct {
	OrderID       int64           `json:"orderId"`
	UserID        int64           `json:"userId"`
	BeforeAmount  decimal.Decimal `json:"beforeAmount"`
	ReducedAmount decimal.Decimal `json:"reducedAmount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        domain.Status   `json:"status"`
	CouponID      *int64          `json:"couponId,omitempty"`
	BuyTomatoCnt  int             `json:"buyTomatoCnt,omitempty"`
	TradeNo       string          `json:"tradeNo,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CreateTime    time.Time       `json:"createTime"`
	Lines         []LineResponse  `json:"lines,omitempty"`
}

type LineResponse struct {
	CartItemID int64             `json:"cartItemId"`
	ProductID  int64             `json:"productId"`
	Quantity   int               `json:"quantity"`
	Status     domain.LineStatus `json:"status"`
}

// PaymentFormResponse 是发起支付用例的输出
type PaymentFormResponse struct {
	PaymentForm   string          `json:"paymentForm"`
	OrderID       int64           `json:"orderId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaymentMethod string          `json:"paymentMethod"`
}

func toOrderResponse(o *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		OrderID:       o.ID,
		UserID:        o.UserID,
		BeforeAmount:  o.BeforeAmount,
		ReducedAmount: o.ReducedAmount,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		CouponID:      o.CouponID,
		BuyTomatoCnt:  o.BuyTomatoCnt,
		TradeNo:       o.TradeNo,
		PaidAt:        o.PaidAt,
		CreateTime:    o.CreatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			CartItemID: l.CartItemID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			Status:     l.Status,
		})
	}
	return resp
}
