package xthrottle

import (
	"fmt"
	"time"
)

// =============================================================================
// 窗口常量
// =============================================================================

// 三档窗口的时长。burst 桶以 1 秒为补充窗口，
// 与上游"短时突发"限制的粒度一致。
const (
	windowBurst  = time.Second
	windowMinute = time.Minute
	windowHour   = time.Hour
)

// 窗口名称，用于 Status 输出和指标属性。
const (
	WindowNameBurst  = "burst"
	WindowNameMinute = "minute"
	WindowNameHour   = "hour"
)

// defaultMinWait 令牌不足时的最小重查间隔。
// 缺口等待时间的下限，避免高频自旋。
const defaultMinWait = 100 * time.Millisecond

// =============================================================================
// 限流配置
// =============================================================================

// Config 定义三档窗口的令牌容量。
// 零值不可用，请使用 DefaultConfig() 或显式填充所有字段。
type Config struct {
	// BurstCapacity 突发桶容量（1 秒窗口）。
	BurstCapacity int `koanf:"burst_capacity" json:"burst_capacity" yaml:"burst_capacity"`

	// CallsPerMinute 每分钟允许的调用数。
	CallsPerMinute int `koanf:"calls_per_minute" json:"calls_per_minute" yaml:"calls_per_minute"`

	// CallsPerHour 每小时允许的调用数。
	CallsPerHour int `koanf:"calls_per_hour" json:"calls_per_hour" yaml:"calls_per_hour"`
}

// DefaultConfig 返回默认限流配置。
// 默认值对应上游平台公开的客户端调用建议：突发 10，每分钟 100，每小时 1000。
func DefaultConfig() Config {
	return Config{
		BurstCapacity:  10,
		CallsPerMinute: 100,
		CallsPerHour:   1000,
	}
}

// Validate 校验配置。
// 三档容量都必须大于 0，且窗口间不允许倒挂（分钟容量不得超过小时容量）。
func (c Config) Validate() error {
	if c.BurstCapacity <= 0 {
		return fmt.Errorf("%w: burst_capacity must be positive, got %d", ErrInvalidConfig, c.BurstCapacity)
	}
	if c.CallsPerMinute <= 0 {
		return fmt.Errorf("%w: calls_per_minute must be positive, got %d", ErrInvalidConfig, c.CallsPerMinute)
	}
	if c.CallsPerHour <= 0 {
		return fmt.Errorf("%w: calls_per_hour must be positive, got %d", ErrInvalidConfig, c.CallsPerHour)
	}
	if c.CallsPerMinute > c.CallsPerHour {
		return fmt.Errorf("%w: calls_per_minute (%d) exceeds calls_per_hour (%d)",
			ErrInvalidConfig, c.CallsPerMinute, c.CallsPerHour)
	}
	return nil
}

// =============================================================================
// 自适应配置
// =============================================================================

// AdaptiveConfig 定义自适应延迟的惩罚与衰减常量。
// 这些常量是经验调参值，保留为配置项而非硬编码。
type AdaptiveConfig struct {
	// QuotaPenalty 配额类错误的单次惩罚增量。
	QuotaPenalty time.Duration `koanf:"quota_penalty" json:"quota_penalty" yaml:"quota_penalty"`

	// QuotaDelayCap 配额类错误的延迟上限。
	QuotaDelayCap time.Duration `koanf:"quota_delay_cap" json:"quota_delay_cap" yaml:"quota_delay_cap"`

	// RatePenalty 速率类错误的单次惩罚增量。
	RatePenalty time.Duration `koanf:"rate_penalty" json:"rate_penalty" yaml:"rate_penalty"`

	// RateDelayCap 速率类错误的延迟上限。
	RateDelayCap time.Duration `koanf:"rate_delay_cap" json:"rate_delay_cap" yaml:"rate_delay_cap"`

	// GenericPenalty 一般瞬态错误的单次惩罚增量。
	GenericPenalty time.Duration `koanf:"generic_penalty" json:"generic_penalty" yaml:"generic_penalty"`

	// GenericDelayCap 一般瞬态错误的延迟上限。
	GenericDelayCap time.Duration `koanf:"generic_delay_cap" json:"generic_delay_cap" yaml:"generic_delay_cap"`

	// SuccessDecay 每次成功的线性衰减量，下限为零。
	SuccessDecay time.Duration `koanf:"success_decay" json:"success_decay" yaml:"success_decay"`
}

// DefaultAdaptiveConfig 返回默认自适应配置。
// 配额类错误惩罚最重（+10s，上限 60s），速率类次之（+5s，上限 30s），
// 一般错误最轻（+1s，上限 10s）；每次成功衰减 100ms。
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		QuotaPenalty:    10 * time.Second,
		QuotaDelayCap:   60 * time.Second,
		RatePenalty:     5 * time.Second,
		RateDelayCap:    30 * time.Second,
		GenericPenalty:  time.Second,
		GenericDelayCap: 10 * time.Second,
		SuccessDecay:    100 * time.Millisecond,
	}
}

// Validate 校验自适应配置。
// 所有惩罚/衰减值必须为正，上限不得小于对应的单次惩罚。
func (c AdaptiveConfig) Validate() error {
	type pair struct {
		name    string
		penalty time.Duration
		cap     time.Duration
	}
	pairs := []pair{
		{"quota", c.QuotaPenalty, c.QuotaDelayCap},
		{"rate", c.RatePenalty, c.RateDelayCap},
		{"generic", c.GenericPenalty, c.GenericDelayCap},
	}
	for _, p := range pairs {
		if p.penalty <= 0 {
			return fmt.Errorf("%w: %s penalty must be positive", ErrInvalidConfig, p.name)
		}
		if p.cap < p.penalty {
			return fmt.Errorf("%w: %s delay cap below its penalty", ErrInvalidConfig, p.name)
		}
	}
	if c.SuccessDecay <= 0 {
		return fmt.Errorf("%w: success_decay must be positive", ErrInvalidConfig)
	}
	return nil
}
