package domain

import "errors"

var (
	ErrOrderNotFound = errors.New("订单不存在")
	// ErrOrderNotPending 订单已处于终态，不能再变更
	ErrOrderNotPending         = errors.New("订单状态不允许该操作")
	ErrAmountMismatch          = errors.New("支付金额与订单金额不一致")
	ErrPaymentSignatureInvalid = errors.New("支付宝签名验证失败")
	ErrInvalidOutTradeNo       = errors.New("无法识别的商户订单号")
	ErrTomatoCountIllegal      = errors.New("番茄币购买数量不合法")
	ErrEmptyCheckout           = errors.New("结算的购物车商品为空")
	ErrCartItemNotFound        = errors.New("购物车商品不存在")
	ErrQuantityExceedsStock    = errors.New("商品数量超出库存数")
	ErrAccountNotFound         = errors.New("账户不存在")
	// ErrLineAlreadySettled 预占记录已被其他流程释放或结算
	ErrLineAlreadySettled = errors.New("预占记录已处理")
)
