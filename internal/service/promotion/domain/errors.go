package domain

import "errors"

var (
	ErrCouponNotFound        = errors.New("优惠券不存在")
	ErrCouponInvalid         = errors.New("优惠券不可用")
	ErrUnsupportedCouponType = errors.New("不支持的优惠券类型")
	ErrThresholdNotReached   = errors.New("未达到优惠券使用门槛")
	ErrCouponUsedUp          = errors.New("优惠券已领完")
	ErrTemplateNotFound      = errors.New("优惠券模板不存在")
	ErrInvalidTemplate       = errors.New("优惠券模板参数不合法")
	ErrInvalidRule           = errors.New("优惠券适用规则不合法")
)
