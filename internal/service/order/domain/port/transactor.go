package port

import "context"

// Transactor 在同一个数据库事务中执行 fn，嵌套调用加入外层事务
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
