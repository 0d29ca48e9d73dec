package adapter

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"sort"

	"github.com/pkg/errors"
	"github.com/smartwalle/alipay/v3"

	"tomatomall/internal/pkg/bootstrap"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

const alipayProductCode = "FAST_INSTANT_TRADE_PAY"

// 把 SDK 生成的已签名跳转链接渲染成自动提交的表单，与网关 pageExecute 的返回一致
var paymentFormTmpl = template.Must(template.New("alipay").Parse(
	`<form name="punchout_form" method="post" action="{{.Action}}">
{{range .Fields}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{end}}<input type="submit" value="立即支付" style="display:none" >
</form>
<script>document.forms[0].submit();</script>`))

type formField struct {
	Name  string
	Value string
}

// AlipayGateway 实现了 port.PaymentGateway：电脑网站支付表单生成与 RSA2 异步通知验签
type AlipayGateway struct {
	cfg    bootstrap.AlipayConfig
	client *alipay.Client
}

func NewAlipayGateway(cfg bootstrap.AlipayConfig) (*AlipayGateway, error) {
	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.Production)
	if err != nil {
		return nil, errors.Wrap(err, "init alipay client")
	}
	if err := client.LoadAliPayPublicKey(cfg.AlipayPublicKey); err != nil {
		return nil, errors.Wrap(err, "load alipay public key")
	}
	return &AlipayGateway{cfg: cfg, client: client}, nil
}

func (g *AlipayGateway) CreatePaymentForm(ctx context.Context, req port.PaymentFormRequest) (string, error) {
	var p = alipay.TradePagePay{}
	p.NotifyURL = g.cfg.NotifyURL
	p.ReturnURL = g.cfg.ReturnURL
	p.Subject = req.Subject
	p.OutTradeNo = req.OutTradeNo
	p.TotalAmount = req.TotalAmount.StringFixed(2)
	p.ProductCode = alipayProductCode

	payURL, err := g.client.TradePagePay(p)
	if err != nil {
		return "", errors.Wrap(err, "build alipay page pay")
	}
	return renderPaymentForm(payURL)
}

func renderPaymentForm(payURL *url.URL) (string, error) {
	params := payURL.Query()
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "charset" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]formField, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, formField{Name: k, Value: params.Get(k)})
	}

	action := *payURL
	action.RawQuery = url.Values{"charset": {"utf-8"}}.Encode()
	var buf bytes.Buffer
	err := paymentFormTmpl.Execute(&buf, struct {
		Action string
		Fields []formField
	}{Action: action.String(), Fields: fields})
	if err != nil {
		return "", errors.Wrap(err, "render payment form")
	}
	return buf.String(), nil
}

// VerifyCallback 用支付宝公钥校验异步通知
func (g *AlipayGateway) VerifyCallback(params url.Values) error {
	if err := g.client.VerifySign(context.Background(), params); err != nil {
		return errors.Wrap(domain.ErrPaymentSignatureInvalid, err.Error())
	}
	return nil
}
