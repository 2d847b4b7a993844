package xthrottle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Limiter 接口
// =============================================================================

// Limiter 定义准入控制接口。
type Limiter interface {
	// Acquire 阻塞直到所有窗口同时放行，然后原子地从每个桶扣除 tokens。
	// ctx 取消/超时会中止等待并返回 ErrAcquireTimeout（包装 ctx.Err()）。
	Acquire(ctx context.Context, tokens int) error

	// TryAcquire 非阻塞版本，放行返回 true 并扣除令牌，否则返回 false。
	TryAcquire(tokens int) bool

	// Status 返回各窗口当前状态与近期放行计数，仅用于观测，不影响准入。
	Status() Status

	// Reset 将所有桶恢复至满容量并清空放行记录。
	Reset()

	// Close 关闭限流器。关闭后 Acquire/TryAcquire 拒绝所有请求。
	Close() error
}

// =============================================================================
// 状态结构
// =============================================================================

// WindowStatus 表示单个窗口的快照。
type WindowStatus struct {
	// Window 窗口名称（burst / minute / hour）。
	Window string `json:"window"`

	// Capacity 窗口容量。
	Capacity float64 `json:"capacity"`

	// Available 当前可用令牌数。
	Available float64 `json:"available"`
}

// Status 表示限流器的整体快照。
type Status struct {
	// Windows 各窗口状态，顺序固定为 burst / minute / hour。
	Windows []WindowStatus `json:"windows"`

	// RequestsLastMinute 最近一分钟的放行次数。
	RequestsLastMinute int `json:"requests_last_minute"`

	// RequestsLastHour 最近一小时的放行次数。
	RequestsLastHour int `json:"requests_last_hour"`
}

// =============================================================================
// 令牌桶
// =============================================================================

// bucket 单窗口令牌桶。
// 补充是连续的：按流逝时间等比例补充，上限为容量。
// 所有方法必须在持有外层互斥锁时调用。
type bucket struct {
	name       string
	capacity   float64
	available  float64
	window     time.Duration
	lastRefill time.Time
}

func newBucket(name string, capacity int, window time.Duration, now time.Time) *bucket {
	return &bucket{
		name:       name,
		capacity:   float64(capacity),
		available:  float64(capacity),
		window:     window,
		lastRefill: now,
	}
}

// refill 按流逝时间补充令牌，封顶于容量。
// 时钟回拨（elapsed < 0）时只推进 lastRefill，不扣减已有令牌。
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now
	if elapsed <= 0 {
		return
	}
	b.available += b.rate() * elapsed.Seconds()
	if b.available > b.capacity {
		b.available = b.capacity
	}
}

// rate 每秒补充的令牌数。
func (b *bucket) rate() float64 {
	return b.capacity / b.window.Seconds()
}

// waitFor 返回积累到 tokens 个令牌所需的时间。
func (b *bucket) waitFor(tokens float64) time.Duration {
	deficit := tokens - b.available
	if deficit <= 0 {
		return 0
	}
	return time.Duration(deficit / b.rate() * float64(time.Second))
}

// =============================================================================
// TokenBucketLimiter
// =============================================================================

// TokenBucketLimiter 三窗口令牌桶限流器。
// 必须通过 New 创建，零值不可用。
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets []*bucket
	grants  []time.Time // 近期放行时间戳环，修剪至最近一小时，仅用于 Status
	closed  bool

	minWait time.Duration
	logger  *slog.Logger
	metrics *limiterMetrics
	nowFunc func() time.Time // 测试注入
}

var _ Limiter = (*TokenBucketLimiter)(nil)

// Options 定义限流器的可选配置。
type Options struct {
	// Logger 日志记录器。不设置时使用 slog.Default()。
	Logger *slog.Logger

	// MinWait 令牌不足时的最小重查间隔。
	// 默认 100ms。
	MinWait time.Duration
}

// Option 定义配置限流器的函数类型。
type Option func(*Options)

// WithLogger 设置日志记录器。传入 nil 时保持默认。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMinWait 设置最小重查间隔。非正值被忽略。
func WithMinWait(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.MinWait = d
		}
	}
}

func defaultLimiterOptions() *Options {
	return &Options{
		Logger:  slog.Default(),
		MinWait: defaultMinWait,
	}
}

// New 创建三窗口令牌桶限流器。
// 配置无效时返回 ErrInvalidConfig。
func New(cfg Config, opts ...Option) (*TokenBucketLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := defaultLimiterOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	now := time.Now()
	return &TokenBucketLimiter{
		buckets: []*bucket{
			newBucket(WindowNameBurst, cfg.BurstCapacity, windowBurst, now),
			newBucket(WindowNameMinute, cfg.CallsPerMinute, windowMinute, now),
			newBucket(WindowNameHour, cfg.CallsPerHour, windowHour, now),
		},
		minWait: options.MinWait,
		logger:  options.Logger,
		metrics: newLimiterMetrics(),
		nowFunc: time.Now,
	}, nil
}

// Acquire 阻塞直到三个窗口同时放行。
//
// 准入判定与扣减在单个临界区内完成（全有或全无），
// 等待发生在临界区之外，不阻塞其他调用方的检查。
func (l *TokenBucketLimiter) Acquire(ctx context.Context, tokens int) error {
	if err := l.validateTokens(tokens); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAcquireTimeout, err)
	}

	start := l.nowFunc()
	for {
		granted, wait, err := l.take(tokens)
		if err != nil {
			return err
		}
		if granted {
			l.metrics.recordAcquire(ctx, l.nowFunc().Sub(start))
			return nil
		}

		if wait < l.minWait {
			wait = l.minWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.metrics.recordDenied(ctx)
			return fmt.Errorf("%w: %w", ErrAcquireTimeout, ctx.Err())
		case <-timer.C:
		}
	}
}

// TryAcquire 非阻塞获取令牌。
func (l *TokenBucketLimiter) TryAcquire(tokens int) bool {
	if err := l.validateTokens(tokens); err != nil {
		return false
	}
	granted, _, err := l.take(tokens)
	return err == nil && granted
}

// take 单次检查并扣减。
// 放行返回 (true, 0, nil)；令牌不足返回 (false, 最短等待时间, nil)。
// 等待时间取各短缺桶补足所需时间的最小值，休眠后由调用方重查。
func (l *TokenBucketLimiter) take(tokens int) (granted bool, wait time.Duration, err error) {
	need := float64(tokens)
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, 0, ErrClosed
	}

	shortWait := time.Duration(0)
	ok := true
	for _, b := range l.buckets {
		b.refill(now)
		if b.available < need {
			ok = false
			w := b.waitFor(need)
			if shortWait == 0 || w < shortWait {
				shortWait = w
			}
		}
	}
	if !ok {
		return false, shortWait, nil
	}

	for _, b := range l.buckets {
		b.available -= need
	}
	l.recordGrant(now)
	return true, 0, nil
}

// recordGrant 记录放行时间戳并修剪超过一小时的旧记录。
// 必须在持有 l.mu 时调用。
func (l *TokenBucketLimiter) recordGrant(now time.Time) {
	cutoff := now.Add(-windowHour)
	pruned := l.grants[:0]
	for _, ts := range l.grants {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	l.grants = append(pruned, now)
}

// validateTokens 校验请求的令牌数。
// 超过任一桶容量的请求永远无法满足，直接拒绝而非无限阻塞。
func (l *TokenBucketLimiter) validateTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTokens, tokens)
	}
	for _, b := range l.buckets {
		if float64(tokens) > b.capacity {
			return fmt.Errorf("%w: %d tokens > %s capacity %.0f",
				ErrTokensExceedCapacity, tokens, b.name, b.capacity)
		}
	}
	return nil
}

// Status 返回当前窗口状态与近期放行计数。
// 读取前会先补充令牌，保证快照反映当前时刻。
func (l *TokenBucketLimiter) Status() Status {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	windows := make([]WindowStatus, 0, len(l.buckets))
	for _, b := range l.buckets {
		b.refill(now)
		windows = append(windows, WindowStatus{
			Window:    b.name,
			Capacity:  b.capacity,
			Available: b.available,
		})
	}

	minuteCutoff := now.Add(-windowMinute)
	hourCutoff := now.Add(-windowHour)
	lastMinute, lastHour := 0, 0
	for _, ts := range l.grants {
		if ts.After(hourCutoff) {
			lastHour++
			if ts.After(minuteCutoff) {
				lastMinute++
			}
		}
	}

	return Status{
		Windows:            windows,
		RequestsLastMinute: lastMinute,
		RequestsLastHour:   lastHour,
	}
}

// Reset 将所有桶恢复至满容量并清空放行记录。
func (l *TokenBucketLimiter) Reset() {
	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.buckets {
		b.available = b.capacity
		b.lastRefill = now
	}
	l.grants = nil
}

// Close 关闭限流器。幂等。
func (l *TokenBucketLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
