package xvideo

import (
	"fmt"
	"time"

	"github.com/omeyang/vidgate/pkg/business/xquota"
	"github.com/omeyang/vidgate/pkg/resilience/xthrottle"
	"github.com/omeyang/vidgate/pkg/storage/xtiered"
)

// =============================================================================
// 配置
// =============================================================================

const (
	// DefaultBaseURL 上游 API 默认根地址。
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	defaultTimeout    = 30 * time.Second
	defaultCacheTTL   = time.Hour
	defaultChunkDelay = 100 * time.Millisecond
	defaultMaxRetries = 2
	defaultKeyPrefix  = "vidgate"
)

// Config 客户端配置。
type Config struct {
	// APIKey 上游 API 凭证，必填（注入自定义 Transport 时除外）。
	APIKey string `koanf:"api_key" json:"api_key" yaml:"api_key"`

	// BaseURL 上游 API 根地址，默认 DefaultBaseURL。
	BaseURL string `koanf:"base_url" json:"base_url" yaml:"base_url"`

	// Timeout 单次上游 HTTP 请求超时，默认 30s。
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`

	// CacheTTL 响应缓存的默认生存期，默认 1h。
	CacheTTL time.Duration `koanf:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"`

	// KeyPrefix 缓存键前缀，默认 vidgate。
	KeyPrefix string `koanf:"key_prefix" json:"key_prefix" yaml:"key_prefix"`

	// ChunkDelay 分块调用之间的间隔，默认 100ms。
	ChunkDelay time.Duration `koanf:"chunk_delay" json:"chunk_delay" yaml:"chunk_delay"`

	// MaxRetries 瞬态失败的最大重试次数（不含首次尝试），默认 2，0 禁用。
	MaxRetries int `koanf:"max_retries" json:"max_retries" yaml:"max_retries"`

	// EnableBreaker 是否对上游启用熔断。
	EnableBreaker bool `koanf:"enable_breaker" json:"enable_breaker" yaml:"enable_breaker"`

	// RateLimit 多窗口限流配置。
	RateLimit xthrottle.Config `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`

	// Adaptive 自适应退避配置。
	Adaptive xthrottle.AdaptiveConfig `koanf:"adaptive" json:"adaptive" yaml:"adaptive"`

	// Quota 每日配额配置。
	Quota xquota.Config `koanf:"quota" json:"quota" yaml:"quota"`

	// Cache 分层缓存配置。
	Cache xtiered.Config `koanf:"cache" json:"cache" yaml:"cache"`
}

// DefaultConfig 返回带默认值的配置。APIKey 需调用方补齐。
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    defaultTimeout,
		CacheTTL:   defaultCacheTTL,
		KeyPrefix:  defaultKeyPrefix,
		ChunkDelay: defaultChunkDelay,
		MaxRetries: defaultMaxRetries,
		RateLimit:  xthrottle.DefaultConfig(),
		Adaptive:   xthrottle.DefaultAdaptiveConfig(),
		Quota:      xquota.DefaultConfig(),
		Cache:      xtiered.DefaultConfig(),
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url 不能为空", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout 必须为正", ErrInvalidConfig)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache_ttl 必须为正", ErrInvalidConfig)
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("%w: chunk_delay 不能为负", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries 不能为负", ErrInvalidConfig)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Adaptive.Validate(); err != nil {
		return err
	}
	if err := c.Quota.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}
