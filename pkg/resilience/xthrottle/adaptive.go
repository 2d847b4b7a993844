package xthrottle

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// 错误类别
// =============================================================================

// ErrorClass 表示反馈给自适应限流器的错误类别。
// 不同类别施加不同幅度的惩罚。
type ErrorClass int

const (
	// ClassGeneric 一般瞬态错误（网络抖动、5xx 等）。
	ClassGeneric ErrorClass = iota

	// ClassRate 上游速率限制错误（429 等价）。
	ClassRate

	// ClassQuota 配额耗尽类错误，惩罚最重。
	ClassQuota
)

// String 返回类别的可读表示，用于日志与指标属性。
func (c ErrorClass) String() string {
	switch c {
	case ClassGeneric:
		return "generic"
	case ClassRate:
		return "rate"
	case ClassQuota:
		return "quota"
	default:
		return "ErrorClass(" + strconv.Itoa(int(c)) + ")"
	}
}

// =============================================================================
// AdaptiveLimiter
// =============================================================================

// AdaptiveStats 自适应状态快照。
type AdaptiveStats struct {
	// SuccessCount 累计成功次数。
	SuccessCount uint64 `json:"success_count"`

	// ErrorCount 累计错误次数。
	ErrorCount uint64 `json:"error_count"`

	// ExtraDelay 当前附加延迟。
	ExtraDelay time.Duration `json:"extra_delay"`
}

// AdaptiveLimiter 在基础限流器之上按观测反馈附加准入延迟。
//
// 附加延迟是 Acquire 前的一次阻塞休眠，与窗口等待叠加而非替代：
// 休眠结束后仍要通过基础限流器的全窗口准入检查。
type AdaptiveLimiter struct {
	base Limiter
	cfg  AdaptiveConfig

	mu           sync.Mutex
	extraDelay   time.Duration
	successCount uint64
	errorCount   uint64
}

var _ Limiter = (*AdaptiveLimiter)(nil)

// NewAdaptive 创建自适应限流器。
// base 为 nil 返回 ErrNilLimiter；cfg 无效返回 ErrInvalidConfig。
func NewAdaptive(base Limiter, cfg AdaptiveConfig) (*AdaptiveLimiter, error) {
	if base == nil {
		return nil, ErrNilLimiter
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AdaptiveLimiter{
		base: base,
		cfg:  cfg,
	}, nil
}

// Acquire 先施加当前附加延迟（可被 ctx 中止），再委托基础限流器。
func (a *AdaptiveLimiter) Acquire(ctx context.Context, tokens int) error {
	delay := a.ExtraDelay()
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrAcquireTimeout, ctx.Err())
		case <-timer.C:
		}
	}
	return a.base.Acquire(ctx, tokens)
}

// TryAcquire 非阻塞获取，不施加附加延迟。
func (a *AdaptiveLimiter) TryAcquire(tokens int) bool {
	return a.base.TryAcquire(tokens)
}

// RecordSuccess 记录一次成功，附加延迟线性衰减，下限为零。
func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.extraDelay -= a.cfg.SuccessDecay
	if a.extraDelay < 0 {
		a.extraDelay = 0
	}
}

// RecordError 记录一次错误，按类别累加附加延迟并收敛到该类别的上限。
func (a *AdaptiveLimiter) RecordError(class ErrorClass) {
	penalty, cap := a.penaltyFor(class)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.extraDelay += penalty
	if a.extraDelay > cap {
		a.extraDelay = cap
	}
}

// penaltyFor 返回类别对应的惩罚增量与上限。
// 未知类别按一般错误处理。
func (a *AdaptiveLimiter) penaltyFor(class ErrorClass) (penalty, cap time.Duration) {
	switch class {
	case ClassQuota:
		return a.cfg.QuotaPenalty, a.cfg.QuotaDelayCap
	case ClassRate:
		return a.cfg.RatePenalty, a.cfg.RateDelayCap
	default:
		return a.cfg.GenericPenalty, a.cfg.GenericDelayCap
	}
}

// ExtraDelay 返回当前附加延迟。
func (a *AdaptiveLimiter) ExtraDelay() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.extraDelay
}

// Stats 返回自适应状态快照。
func (a *AdaptiveLimiter) Stats() AdaptiveStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AdaptiveStats{
		SuccessCount: a.successCount,
		ErrorCount:   a.errorCount,
		ExtraDelay:   a.extraDelay,
	}
}

// Status 委托基础限流器。
func (a *AdaptiveLimiter) Status() Status {
	return a.base.Status()
}

// Reset 重置基础限流器并清零自适应状态。
func (a *AdaptiveLimiter) Reset() {
	a.base.Reset()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.extraDelay = 0
	a.successCount = 0
	a.errorCount = 0
}

// Close 委托基础限流器。
func (a *AdaptiveLimiter) Close() error {
	return a.base.Close()
}
