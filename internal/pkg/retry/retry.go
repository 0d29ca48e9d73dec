// Package retry 在 cenkalti/backoff 之上提供有上限的指数退避重试
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// ErrExhausted 表示重试次数耗尽，最后一次的错误会被一并包装
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 描述重试次数与退避参数。
// 第 n 次重试前等待 InitialBackoff * Multiplier^(n-1)，且不超过 MaxBackoff。
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Retryable 判断错误是否值得重试，为 nil 时所有错误都重试
	Retryable func(err error) bool
	// OnRetry 在每次等待前回调，用于日志与指标
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy 3 次尝试，100ms 起步翻倍，封顶 1s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
	}
}

// exponential 不加随机抖动、不限总时长，次数由 WithMaxRetries 控制
func (p Policy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.RandomizationFactor = 0
	b.Multiplier = math.Max(p.Multiplier, 1)
	b.MaxInterval = p.MaxBackoff
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff 返回第 attempt 次失败后的等待时长 (attempt 从 1 开始)
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	b := p.exponential()
	var wait time.Duration
	for i := 0; i < attempt; i++ {
		wait = b.NextBackOff()
	}
	return wait
}

// Do 执行 fn，失败且可重试时按策略退避后重试。
// 不可重试的错误原样返回；次数耗尽时返回包装了 ErrExhausted 与最后一次错误的错误。
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	var (
		attempt   int
		permanent bool
	)
	op := func() error {
		if err := ctx.Err(); err != nil {
			permanent = true
			return backoff.Permanent(err)
		}
		attempt++
		err := fn(ctx, attempt)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(p.attempts()-1)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return nil
	case permanent:
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
}
