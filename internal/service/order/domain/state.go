// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态。
// PENDING 是唯一的非终态，其余状态一旦进入就不再变化。
type Status string

const (
	StatusPending Status = "PENDING" // 已下单，库存已冻结，等待支付
	StatusSuccess Status = "SUCCESS" // 支付成功
	StatusFailed  Status = "FAILED"  // 用户主动取消
	StatusTimeout Status = "TIMEOUT" // 超时未支付，被回收
)

// IsTerminal 判断状态是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimeout
}

// LineStatus 是单条预占记录的状态，保证每条记录最多被释放或结算一次
type LineStatus string

const (
	LineReserved     LineStatus = "RESERVED"
	LineReleased     LineStatus = "RELEASED"
	LineCommitted    LineStatus = "COMMITTED"
	LineCommitFailed LineStatus = "COMMIT_FAILED"
)
