// internal/pkg/worker/periodic.go
package worker

import (
	"context"
	"time"

	"tomatomall/internal/pkg/logger"
)

// Locker 在多副本部署时保证同一时刻只有一个实例执行任务
type Locker interface {
	// TryLock 在 ctx 结束前获取锁；返回的 unlock 必须被调用
	TryLock(ctx context.Context, name string) (unlock func() error, err error)
}

// Periodic 以固定间隔执行一个任务，任务之间不重叠
type Periodic struct {
	Name     string
	Interval time.Duration
	Task     func(ctx context.Context) error
	// Locker 为空时不做跨进程互斥
	Locker Locker
	// LockTimeout 等待锁的最长时间，默认等于 Interval
	LockTimeout time.Duration
}

// Run 阻塞直到 ctx 结束。任务报错只记录日志，不会中断循环。
func (p *Periodic) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("worker", p.Name).Dur("interval", p.Interval).Msg("✅ periodic worker started")
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Str("worker", p.Name).Msg("🛑 periodic worker stopped")
			return nil
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一轮任务（获取锁 → 执行 → 释放锁）
func (p *Periodic) RunOnce(ctx context.Context) {
	log := logger.Ctx(ctx).With().Str("worker", p.Name).Logger()

	if p.Locker != nil {
		timeout := p.LockTimeout
		if timeout <= 0 {
			timeout = p.Interval
		}
		lockCtx, cancel := context.WithTimeout(ctx, timeout)
		unlock, err := p.Locker.TryLock(lockCtx, p.Name)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("lock not acquired, skip this round")
			return
		}
		defer func() {
			if err := unlock(); err != nil {
				log.Warn().Err(err).Msg("failed to release worker lock")
			}
		}()
	}

	if err := p.Task(ctx); err != nil {
		log.Error().Err(err).Msg("periodic task failed")
	}
}
