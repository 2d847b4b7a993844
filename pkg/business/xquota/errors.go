package xquota

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// 哨兵错误
// =============================================================================

var (
	// ErrQuotaExceeded 表示本地预算不足，调用被拒绝。
	// 此错误在任何网络调用之前产生，区别于上游返回的配额错误。
	ErrQuotaExceeded = errors.New("xquota: daily quota exceeded")

	// ErrInvalidConfig 表示配额配置无效。
	ErrInvalidConfig = errors.New("xquota: invalid config")
)

// =============================================================================
// 类型化错误
// =============================================================================

// ExceededError 携带预算拒绝的上下文。
// 通过 errors.Is(err, ErrQuotaExceeded) 匹配。
type ExceededError struct {
	// Operation 被拒绝的操作。
	Operation string

	// Cost 该操作的成本。
	Cost int64

	// Used 当前窗口已用量。
	Used int64

	// Limit 窗口预算上限。
	Limit int64

	// ResetAt 窗口重置时刻。
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("xquota: daily quota exceeded: op=%s cost=%d used=%d limit=%d reset_at=%s",
		e.Operation, e.Cost, e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Is 支持 errors.Is(err, ErrQuotaExceeded)。
func (e *ExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Retryable 配额耗尽不可立即重试，需等待窗口重置。
func (e *ExceededError) Retryable() bool {
	return false
}
