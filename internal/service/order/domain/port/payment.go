// internal/service/order/domain/port/payment.go
package port

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

// PaymentFormRequest 生成支付表单所需的参数
type PaymentFormRequest struct {
	OutTradeNo  string
	TotalAmount decimal.Decimal
	Subject     string
}

// PaymentGateway 抽象了第三方支付网关
type PaymentGateway interface {
	// CreatePaymentForm 返回可直接提交到网关的 HTML 表单
	CreatePaymentForm(ctx context.Context, req PaymentFormRequest) (string, error)
	// VerifyCallback 校验异步通知的签名，失败时返回 domain.ErrPaymentSignatureInvalid
	VerifyCallback(params url.Values) error
}
