package xquota

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// 配置
// =============================================================================

// Config 定义配额跟踪配置。
type Config struct {
	// DailyLimit 每日预算上限。
	DailyLimit int64 `koanf:"daily_limit" json:"daily_limit" yaml:"daily_limit"`

	// Window 预算窗口时长。默认 24 小时。
	Window time.Duration `koanf:"window" json:"window" yaml:"window"`
}

// DefaultConfig 返回默认配额配置（每日 10000 单位）。
func DefaultConfig() Config {
	return Config{
		DailyLimit: 10000,
		Window:     24 * time.Hour,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.DailyLimit <= 0 {
		return fmt.Errorf("%w: daily_limit must be positive, got %d", ErrInvalidConfig, c.DailyLimit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	return nil
}

// =============================================================================
// 状态
// =============================================================================

// Status 配额状态快照。
type Status struct {
	// Used 当前窗口已用量。
	Used int64 `json:"used"`

	// Limit 窗口预算上限。
	Limit int64 `json:"limit"`

	// Remaining 剩余预算。
	Remaining int64 `json:"remaining"`

	// ResetAt 窗口重置时刻。
	ResetAt time.Time `json:"reset_at"`
}

// =============================================================================
// Tracker
// =============================================================================

// Tracker 单凭证的每日配额跟踪器。
// 必须通过 NewTracker 创建，零值不可用。所有方法并发安全。
type Tracker struct {
	mu      sync.Mutex
	used    int64
	limit   int64
	window  time.Duration
	resetAt time.Time

	costs   CostTable
	logger  *slog.Logger
	nowFunc func() time.Time // 测试注入
}

// TrackerOption 定义配置跟踪器的函数类型。
type TrackerOption func(*Tracker)

// WithCostTable 设置操作成本表。nil 或空表被忽略。
func WithCostTable(costs CostTable) TrackerOption {
	return func(t *Tracker) {
		if len(costs) > 0 {
			t.costs = costs
		}
	}
}

// WithTrackerLogger 设置日志记录器。传入 nil 时保持默认。
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker 创建配额跟踪器。配置无效时返回 ErrInvalidConfig。
func NewTracker(cfg Config, opts ...TrackerOption) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tracker{
		limit:   cfg.DailyLimit,
		window:  cfg.Window,
		costs:   DefaultCostTable(),
		logger:  slog.Default(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.resetAt = t.nowFunc().Add(t.window)
	return t, nil
}

// CheckAndReserve 预检操作是否在预算内。
//
// 预算不足时返回 *ExceededError（匹配 ErrQuotaExceeded），
// 已用量保持不变（无部分扣减）。此检查必须先于限流等待与网络调用，
// 保证耗尽的预算不再消耗任何资源。
func (t *Tracker) CheckAndReserve(operation string) error {
	cost := t.costs.Cost(operation)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindow()

	if t.used+cost > t.limit {
		err := &ExceededError{
			Operation: operation,
			Cost:      cost,
			Used:      t.used,
			Limit:     t.limit,
			ResetAt:   t.resetAt,
		}
		t.logger.Warn("配额预检拒绝",
			slog.String("operation", operation),
			slog.Int64("cost", cost),
			slog.Int64("used", t.used),
			slog.Int64("limit", t.limit),
		)
		return err
	}
	return nil
}

// NoteUsage 在上游调用确认成功后记入实际用量。
func (t *Tracker) NoteUsage(operation string) {
	cost := t.costs.Cost(operation)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindow()
	t.used += cost
}

// Cost 返回操作成本，供调用方预估。
func (t *Tracker) Cost(operation string) int64 {
	return t.costs.Cost(operation)
}

// Status 返回配额状态快照。
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindow()

	remaining := t.limit - t.used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Used:      t.used,
		Limit:     t.limit,
		Remaining: remaining,
		ResetAt:   t.resetAt,
	}
}

// Reset 立即清零用量并重新计算窗口重置时刻。
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.used = 0
	t.resetAt = t.nowFunc().Add(t.window)
}

// rollWindow 滚动预算窗口。
// 越过重置时刻后用量清零，重置时刻精确前进一个窗口，
// 与越过了多少时间无关（连续越过多个窗口时由后续检查逐次推进）。
// 必须在持有 t.mu 时调用。
func (t *Tracker) rollWindow() {
	if t.nowFunc().Before(t.resetAt) {
		return
	}
	t.used = 0
	t.resetAt = t.resetAt.Add(t.window)
}
