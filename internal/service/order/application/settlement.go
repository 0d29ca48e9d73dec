// internal/service/order/application/settlement.go
package application

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/pkg/retry"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

// Ack 是回复给支付网关的纯文本应答
type Ack string

const (
	AckSuccess Ack = "success"
	AckFail    Ack = "fail"
)

const tradeStatusSuccess = "TRADE_SUCCESS"

// FormatOutTradeNo 生成商户订单号：<毫秒时间戳>#<订单ID>
func FormatOutTradeNo(now time.Time, orderID int64) string {
	return fmt.Sprintf("%d#%d", now.UnixMilli(), orderID)
}

// ParseOutTradeNo 从商户订单号中取出订单 ID
func ParseOutTradeNo(outTradeNo string) (int64, error) {
	idx := strings.LastIndexByte(outTradeNo, '#')
	if idx < 0 || idx == len(outTradeNo)-1 {
		return 0, domain.ErrInvalidOutTradeNo
	}
	id, err := strconv.ParseInt(outTradeNo[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidOutTradeNo
	}
	return id, nil
}

// SettlementService 处理支付网关的异步通知
type SettlementService struct {
	repo     domain.OrderRepository
	tx       port.Transactor
	ledger   port.StockLedger
	accounts port.AccountService
	gateway  port.PaymentGateway
	notifier port.EventPublisher
	guard    port.DedupGuard
	policy   retry.Policy
	tracer   trace.Tracer
	now      func() time.Time
}

// NewSettlementService guard 可以为 nil，此时仅依赖数据库条件更新保证幂等
func NewSettlementService(deps Dependencies, guard port.DedupGuard, policy retry.Policy) *SettlementService {
	return &SettlementService{
		repo:     deps.Repo,
		tx:       deps.Tx,
		ledger:   deps.Ledger,
		accounts: deps.Accounts,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		guard:    guard,
		policy:   policy,
		tracer:   deps.Tracer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandlePaymentCallback 验签并结算订单。
// 只有验签失败才回复 fail；验签通过后的业务异常都记录日志并回复 success，避免网关无意义重投。
// 数据库不可用等尚未产生任何变更的基础设施错误回复 fail，交给网关重投。
func (s *SettlementService) HandlePaymentCallback(ctx context.Context, params url.Values) Ack {
	ctx, span := s.tracer.Start(ctx, "app.HandlePaymentCallback", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	if err := s.gateway.VerifyCallback(params); err != nil {
		metrics.PaymentCallbacks.WithLabelValues("rejected").Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("out_trade_no", params.Get("out_trade_no")).Msg("payment callback signature rejected")
		span.RecordError(err)
		span.SetStatus(codes.Error, "signature rejected")
		return AckFail
	}

	tradeStatus := params.Get("trade_status")
	span.SetAttributes(attribute.String("trade.status", tradeStatus))
	if tradeStatus != tradeStatusSuccess {
		metrics.PaymentCallbacks.WithLabelValues("ignored").Inc()
		return AckSuccess
	}

	orderID, err := ParseOutTradeNo(params.Get("out_trade_no"))
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("invalid").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("out_trade_no", params.Get("out_trade_no")).Msg("cannot resolve order from callback")
		return AckSuccess
	}
	amount, err := decimal.NewFromString(params.Get("total_amount"))
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("invalid").Inc()
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Str("total_amount", params.Get("total_amount")).Msg("cannot parse callback amount")
		return AckSuccess
	}
	tradeNo := params.Get("trade_no")
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.String("trade.no", tradeNo))

	if s.guard != nil {
		release, ok, err := s.guard.Acquire(ctx, strconv.FormatInt(orderID, 10))
		switch {
		case err != nil:
			// 占位失败不影响正确性，继续依赖数据库条件更新
			logger.Ctx(ctx).Warn().Err(err).Int64("order_id", orderID).Msg("callback guard unavailable")
		case !ok:
			metrics.PaymentCallbacks.WithLabelValues("duplicate").Inc()
			logger.Ctx(ctx).Info().Int64("order_id", orderID).Msg("callback for this order already in progress")
			return AckSuccess
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	return s.settle(ctx, orderID, tradeNo, amount)
}

func (s *SettlementService) settle(ctx context.Context, orderID int64, tradeNo string, amount decimal.Decimal) Ack {
	span := trace.SpanFromContext(ctx)

	order, paidNow, err := s.markPaid(ctx, orderID, tradeNo, amount)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		metrics.PaymentCallbacks.WithLabelValues("unknown_order").Inc()
		logger.Ctx(ctx).Error().Int64("order_id", orderID).Msg("payment callback for unknown order")
		return AckSuccess
	case errors.Is(err, domain.ErrAmountMismatch):
		metrics.PaymentCallbacks.WithLabelValues("amount_mismatch").Inc()
		logger.Ctx(ctx).Error().Int64("order_id", orderID).Str("paid", amount.String()).Str("expected", order.TotalAmount.String()).Msg("❌ paid amount does not match order, order left pending")
		span.SetStatus(codes.Error, "amount mismatch")
		return AckSuccess
	case err != nil:
		metrics.PaymentCallbacks.WithLabelValues("error").Inc()
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("settlement failed before any change, asking gateway to retry")
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		return AckFail
	}

	if order.Status != domain.StatusSuccess {
		// 已取消或已超时的订单收到付款，需要人工退款
		metrics.PaymentCallbacks.WithLabelValues("not_pending").Inc()
		logger.Ctx(ctx).Warn().Int64("order_id", orderID).Str("status", string(order.Status)).Str("trade_no", tradeNo).Msg("payment received for closed order")
		return AckSuccess
	}

	// 新结算的订单和此前中断留下 RESERVED 行的订单都在这里补齐。
	// 订单已是 SUCCESS，网关断开连接也要把每一行落到 COMMITTED 或 COMMIT_FAILED
	s.commitLines(context.WithoutCancel(ctx), order)

	if paidNow {
		metrics.PaymentCallbacks.WithLabelValues("settled").Inc()
		publishEvent(ctx, s.notifier, domain.EventOrderPaid, order)
		logger.Ctx(ctx).Info().Int64("order_id", orderID).Str("trade_no", tradeNo).Msg("✅ order settled")
	} else {
		metrics.PaymentCallbacks.WithLabelValues("duplicate").Inc()
	}
	return AckSuccess
}

// markPaid 在事务内完成 PENDING → SUCCESS 与番茄币入账。
// paidNow 表示本次调用完成了状态变更；订单已是终态时返回当前订单且 paidNow 为 false。
func (s *SettlementService) markPaid(ctx context.Context, orderID int64, tradeNo string, amount decimal.Decimal) (order *domain.Order, paidNow bool, err error) {
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		order = o
		if o.Status != domain.StatusPending {
			return nil
		}
		if !amount.Equal(o.TotalAmount) {
			return domain.ErrAmountMismatch
		}
		paidAt := s.now()
		ok, err := s.repo.MarkPaid(ctx, orderID, tradeNo, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			// 并发的取消或回收抢先一步，重新读取最终状态
			o, err = s.repo.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			order = o
			return nil
		}
		if o.IsTomatoPurchase() {
			if err := s.accounts.CreditTomato(ctx, o.UserID, o.BuyTomatoCnt); err != nil {
				return errors.Wrap(err, "credit tomato")
			}
		}
		o.Status = domain.StatusSuccess
		o.TradeNo = tradeNo
		o.PaidAt = &paidAt
		paidNow = true
		return nil
	})
	return order, paidNow, err
}

// commitLines 逐行结算冻结库存。版本冲突按策略重试，最终失败的行标记为 COMMIT_FAILED 等待人工处理。
func (s *SettlementService) commitLines(ctx context.Context, order *domain.Order) {
	for _, line := range order.ReservedLines() {
		err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) error {
			return s.tx.WithinTx(ctx, func(ctx context.Context) error {
				if err := s.ledger.Commit(ctx, line.ProductID, line.Quantity); err != nil {
					return err
				}
				moved, err := s.repo.TransitionLine(ctx, line.ID, domain.LineReserved, domain.LineCommitted)
				if err != nil {
					return err
				}
				if !moved {
					return domain.ErrLineAlreadySettled
				}
				return nil
			})
		})
		switch {
		case err == nil:
			line.Status = domain.LineCommitted
		case errors.Is(err, domain.ErrLineAlreadySettled):
			// 并发投递已经处理了这一行
		default:
			reason := "error"
			if errors.Is(err, retry.ErrExhausted) {
				reason = "exhausted"
			}
			metrics.SettlementLineFailures.WithLabelValues(reason).Inc()
			logger.Ctx(ctx).Error().Err(err).Int64("order_id", order.ID).Int64("product_id", line.ProductID).Int("quantity", line.Quantity).Msg("❌ 减少库存失败")
			if _, markErr := s.repo.TransitionLine(ctx, line.ID, domain.LineReserved, domain.LineCommitFailed); markErr != nil {
				logger.Ctx(ctx).Error().Err(markErr).Int64("line_id", line.ID).Msg("failed to flag reservation line")
			} else {
				line.Status = domain.LineCommitFailed
			}
		}
	}
}
