package application

import (
	"context"

	"tomatomall/internal/service/order/domain"
	"tomatomall/internal/service/order/domain/port"
)

// closePending 在一个事务内把待支付订单置为 target，并释放它仍冻结的全部库存。
// 状态条件更新先行，抢不到说明订单已被其他流程处理，返回 false 且不做任何变更。
// 任何一行释放失败都会回滚整个事务，订单保持 PENDING。
func closePending(ctx context.Context, tx port.Transactor, repo domain.OrderRepository, ledger port.StockLedger, order *domain.Order, target domain.Status) (bool, error) {
	var closed bool
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := repo.TransitionStatus(ctx, order.ID, domain.StatusPending, target)
		if err != nil || !ok {
			return err
		}
		for _, line := range order.ReservedLines() {
			if err := ledger.Release(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			moved, err := repo.TransitionLine(ctx, line.ID, domain.LineReserved, domain.LineReleased)
			if err != nil {
				return err
			}
			if !moved {
				return domain.ErrLineAlreadySettled
			}
		}
		closed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if closed {
		order.Status = target
		for _, line := range order.ReservedLines() {
			line.Status = domain.LineReleased
		}
	}
	return closed, nil
}
