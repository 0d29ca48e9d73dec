// internal/service/inventory/application/ledger.go
package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tomatomall/internal/pkg/logger"
	"tomatomall/internal/pkg/metrics"
	"tomatomall/internal/pkg/retry"
	"tomatomall/internal/service/inventory/domain"
)

// StockLedger 提供库存的预占、释放、结算原语。
// 每个操作都是一次 读取 → 领域计算 → 带版本条件写回，本身不重试；
// 需要重试的调用方通过 retry 组合子包装。
type StockLedger struct {
	repo   domain.StockRepository
	tracer trace.Tracer
}

func NewStockLedger(repo domain.StockRepository, tracer trace.Tracer) *StockLedger {
	return &StockLedger{repo: repo, tracer: tracer}
}

// Reserve 冻结 qty 件可售库存
func (l *StockLedger) Reserve(ctx context.Context, productID int64, qty int) error {
	return l.mutate(ctx, "reserve", productID, qty, func(rec *domain.StockRecord) error { return rec.Reserve(qty) })
}

// Release 把 qty 件冻结库存还回可售
func (l *StockLedger) Release(ctx context.Context, productID int64, qty int) error {
	return l.mutate(ctx, "release", productID, qty, func(rec *domain.StockRecord) error { return rec.Release(qty) })
}

// Commit 把 qty 件冻结库存变为真实扣减
func (l *StockLedger) Commit(ctx context.Context, productID int64, qty int) error {
	return l.mutate(ctx, "commit", productID, qty, func(rec *domain.StockRecord) error { return rec.Commit(qty) })
}

// Restock 增加可售库存
func (l *StockLedger) Restock(ctx context.Context, productID int64, qty int) error {
	return l.mutate(ctx, "restock", productID, qty, func(rec *domain.StockRecord) error { return rec.Restock(qty) })
}

// Initialize 为新商品创建 0/0 的库存行
func (l *StockLedger) Initialize(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	rec := domain.NewStockRecord(productID)
	if err := l.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get 读取当前库存
func (l *StockLedger) Get(ctx context.Context, productID int64) (*domain.StockRecord, error) {
	return l.repo.FindByProductID(ctx, productID)
}

func (l *StockLedger) mutate(ctx context.Context, op string, productID int64, qty int, apply func(*domain.StockRecord) error) error {
	ctx, span := l.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	rec, err := l.repo.FindByProductID(ctx, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load stock failed")
		return err
	}
	expected := rec.Version
	if err := apply(rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" rejected")
		return err
	}
	if err := l.repo.CompareAndSwap(ctx, rec, expected); err != nil {
		if errors.Is(err, domain.ErrOptimisticLockConflict) {
			metrics.StockConflicts.WithLabelValues(op).Inc()
			logger.Ctx(ctx).Debug().Str("op", op).Int64("product_id", productID).Int64("version", expected).Msg("stock version conflict")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" write failed")
		return err
	}
	span.SetAttributes(
		attribute.Int("stock.available", rec.Available),
		attribute.Int("stock.frozen", rec.Frozen),
		attribute.Int64("stock.version", rec.Version),
	)
	return nil
}

// IsRetryable 只有版本冲突值得重试，库存不足等业务错误重试也不会成功
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrOptimisticLockConflict)
}

// CommitPolicy 在通用退避参数上附加结算专用的可重试判定
func CommitPolicy(base retry.Policy) retry.Policy {
	base.Retryable = IsRetryable
	return base
}
