package xvideo

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/vidgate/pkg/business/xquota"
	"github.com/omeyang/vidgate/pkg/observability/xmetrics"
	"github.com/omeyang/vidgate/pkg/resilience/xthrottle"
	"github.com/omeyang/vidgate/pkg/storage/xtiered"
)

// =============================================================================
// 函数式选项
// =============================================================================

// Options 客户端的可选依赖。零值表示按配置自建。
type Options struct {
	logger     *slog.Logger
	observer   xmetrics.Observer
	transport  Transport
	httpClient *http.Client
	redis      redis.UniversalClient
	cache      xtiered.Cache
	limiter    *xthrottle.AdaptiveLimiter
	tracker    *xquota.Tracker
}

// Option 修改 Options 的函数。
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		logger:   slog.Default(),
		observer: xmetrics.NoopObserver{},
	}
}

// WithLogger 注入日志器。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 注入观测器。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithTransport 注入自定义传输，测试中用假实现替换上游。
// 注入后 Config 中的 APIKey/BaseURL/Timeout/EnableBreaker 不再生效。
func WithTransport(t Transport) Option {
	return func(o *Options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithHTTPClient 注入自定义 HTTP 客户端（代理、自定义 TLS 等）。
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRedisClient 注入共享的 Redis 客户端作为缓存持久层。
// 客户端生命周期由调用方管理。
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *Options) {
		if client != nil {
			o.redis = client
		}
	}
}

// WithCache 注入完整的缓存实现，替代按配置自建的分层缓存。
func WithCache(cache xtiered.Cache) Option {
	return func(o *Options) {
		if cache != nil {
			o.cache = cache
		}
	}
}

// WithLimiter 注入限流器，多个客户端可共享同一准入预算。
func WithLimiter(limiter *xthrottle.AdaptiveLimiter) Option {
	return func(o *Options) {
		if limiter != nil {
			o.limiter = limiter
		}
	}
}

// WithTracker 注入配额跟踪器。
func WithTracker(tracker *xquota.Tracker) Option {
	return func(o *Options) {
		if tracker != nil {
			o.tracker = tracker
		}
	}
}
