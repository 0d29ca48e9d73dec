// internal/service/order/application/reclamation.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

// ReclamationSweeper 回收超时未支付的订单：释放冻结库存并置为 TIMEOUT
type ReclamationSweeper struct {
	repo      domain.OrderRepository
	tx        port.Transactor
	ledger    port.StockLedger
	notifier  port.EventPublisher
	tracer    trace.Tracer
	window    time.Duration
	batchSize int
	now       func() time.Time
}

func NewReclamationSweeper(deps Dependencies, window time.Duration, batchSize int) *ReclamationSweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReclamationSweeper{
		repo:      deps.Repo,
		tx:        deps.Tx,
		ledger:    deps.Ledger,
		notifier:  deps.Notifier,
		tracer:    deps.Tracer,
		window:    window,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sweep 执行一轮回收，返回本轮回收的订单数。
// 按 id 分页扫完所有过期订单，单笔失败只记录日志，整笔回滚后留给下一轮，不占用后续订单的批次。
func (s *ReclamationSweeper) Sweep(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "app.ReclamationSweep")
	defer span.End()

	cutoff := s.now().Add(-s.window)
	var (
		afterID   int64
		expired   int
		failed    int
		reclaimed int
	)
	for {
		orders, err := s.repo.FindExpiredPending(ctx, cutoff, afterID, s.batchSize)
		if err != nil {
			span.RecordError(err)
			return reclaimed, err
		}
		expired += len(orders)
		for _, order := range orders {
			afterID = order.ID
			ok, err := closePending(ctx, s.tx, s.repo, s.ledger, order, domain.StatusTimeout)
			if err != nil {
				failed++
				logger.Ctx(ctx).Warn().Err(err).Int64("order_id", order.ID).Msg("reclaim order failed, will retry next round")
				continue
			}
			if !ok {
				continue
			}
			reclaimed++
			metrics.OrdersReclaimed.Inc()
			publishEvent(ctx, s.notifier, domain.EventOrderTimedOut, order)
			logger.Ctx(ctx).Info().Int64("order_id", order.ID).Time("created_at", order.CreatedAt).Msg("⏰ pending order timed out, stock released")
		}
		if len(orders) < s.batchSize || ctx.Err() != nil {
			break
		}
	}
	span.SetAttributes(
		attribute.Int("orders.expired", expired),
		attribute.Int("orders.failed", failed),
		attribute.Int("orders.reclaimed", reclaimed),
	)
	return reclaimed, nil
}

// Run 适配 worker.Periodic 的任务签名
func (s *ReclamationSweeper) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}
