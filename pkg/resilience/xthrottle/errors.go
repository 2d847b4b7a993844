package xthrottle

import "errors"

// =============================================================================
// 配置错误
// =============================================================================

var (
	// ErrInvalidConfig 表示限流配置无效。
	ErrInvalidConfig = errors.New("xthrottle: invalid config")

	// ErrInvalidTokens 表示请求的令牌数无效（必须大于 0）。
	ErrInvalidTokens = errors.New("xthrottle: tokens must be positive")

	// ErrTokensExceedCapacity 表示请求的令牌数超过某个桶的容量。
	// 此类请求永远无法被满足，直接 fail-fast 而非无限等待。
	ErrTokensExceedCapacity = errors.New("xthrottle: tokens exceed bucket capacity")

	// ErrNilLimiter 表示传入的基础限流器为 nil。
	ErrNilLimiter = errors.New("xthrottle: nil limiter")
)

// =============================================================================
// 运行时错误
// =============================================================================

var (
	// ErrAcquireTimeout 表示等待准入期间调用方 deadline 到期。
	// 对应调用方可感知的"限流等待超时"错误类别。
	ErrAcquireTimeout = errors.New("xthrottle: acquire timed out waiting for admission")

	// ErrClosed 表示限流器已关闭。
	ErrClosed = errors.New("xthrottle: limiter closed")
)
