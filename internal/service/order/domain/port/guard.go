package port

import "context"

// DedupGuard 合并同一键的并发请求，例如同一笔支付通知的重复投递
type DedupGuard interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), ok bool, err error)
}
