package xvideo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/vidgate/pkg/business/xquota"
	"github.com/omeyang/vidgate/pkg/observability/xmetrics"
	"github.com/omeyang/vidgate/pkg/resilience/xthrottle"
	"github.com/omeyang/vidgate/pkg/storage/xtiered"
)

// componentName 观测属性中的组件名。
const componentName = "xvideo"

// retryBaseDelay 瞬态失败重试的基础退避间隔。
const retryBaseDelay = 200 * time.Millisecond

// =============================================================================
// Client
// =============================================================================

// Client 请求编排器。
// 将缓存、配额预检、限流准入、上游调用与错误归类
// 组合成一条固定管线，所有公开操作都经由它发起上游调用。
//
// Client 并发安全。一个 Client 绑定一份凭证，
// 多凭证场景使用 Pool 获得按凭证隔离的实例。
type Client struct {
	cfg       Config
	logger    *slog.Logger
	observer  xmetrics.Observer
	transport Transport
	cache     xtiered.Cache
	keys      xtiered.KeyBuilder
	limiter   *xthrottle.AdaptiveLimiter
	tracker   *xquota.Tracker

	// sf 合并并发的相同缓存 miss，避免重复消耗配额
	sf singleflight.Group

	ownsCache   bool
	ownsLimiter bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New 创建客户端。
// 未注入的组件按配置自建并由 Client 负责关闭；
// 注入的组件（WithCache / WithLimiter）生命周期归调用方。
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.transport == nil && cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		cfg:      cfg,
		logger:   o.logger,
		observer: o.observer,
		keys:     xtiered.NewKeyBuilder(cfg.KeyPrefix),
		tracker:  o.tracker,
	}

	// 传输
	c.transport = o.transport
	if c.transport == nil {
		t, err := NewHTTPTransport(HTTPTransportConfig{
			BaseURL:       cfg.BaseURL,
			APIKey:        cfg.APIKey,
			Timeout:       cfg.Timeout,
			Client:        o.httpClient,
			Logger:        o.logger,
			EnableBreaker: cfg.EnableBreaker,
		})
		if err != nil {
			return nil, err
		}
		c.transport = t
	}

	// 缓存
	c.cache = o.cache
	if c.cache == nil {
		cacheOpts := []xtiered.Option{xtiered.WithLogger(o.logger)}
		if o.redis != nil {
			cacheOpts = append(cacheOpts, xtiered.WithRedisClient(o.redis))
		}
		cache, err := xtiered.New(cfg.Cache, cacheOpts...)
		if err != nil {
			return nil, err
		}
		c.cache = cache
		c.ownsCache = true
	}

	// 限流
	c.limiter = o.limiter
	if c.limiter == nil {
		base, err := xthrottle.New(cfg.RateLimit, xthrottle.WithLogger(o.logger))
		if err != nil {
			c.cleanupOnInitFailure()
			return nil, err
		}
		adaptive, err := xthrottle.NewAdaptive(base, cfg.Adaptive)
		if err != nil {
			_ = base.Close()
			c.cleanupOnInitFailure()
			return nil, err
		}
		c.limiter = adaptive
		c.ownsLimiter = true
	}

	// 配额
	if c.tracker == nil {
		tracker, err := xquota.NewTracker(cfg.Quota, xquota.WithTrackerLogger(o.logger))
		if err != nil {
			c.cleanupOnInitFailure()
			return nil, err
		}
		c.tracker = tracker
	}

	return c, nil
}

func (c *Client) cleanupOnInitFailure() {
	if c.ownsCache {
		_ = c.cache.Close()
	}
	if c.ownsLimiter {
		_ = c.limiter.Close()
	}
}

// Close 关闭客户端及其自建的组件。幂等。
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		var errs []error
		if c.ownsLimiter {
			errs = append(errs, c.limiter.Close())
		}
		if c.ownsCache {
			errs = append(errs, c.cache.Close())
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// =============================================================================
// 状态查询（本地查询，不触发上游调用）
// =============================================================================

// RateLimitStatus 限流侧快照。
type RateLimitStatus struct {
	// Limiter 各窗口令牌桶的当前状态。
	Limiter xthrottle.Status `json:"limiter"`
	// Adaptive 自适应退避的累计统计。
	Adaptive xthrottle.AdaptiveStats `json:"adaptive"`
}

// QuotaStatus 返回每日配额的当前状态。
func (c *Client) QuotaStatus() xquota.Status {
	return c.tracker.Status()
}

// RateLimitStatus 返回限流与自适应退避的当前状态。
func (c *Client) RateLimitStatus() RateLimitStatus {
	return RateLimitStatus{
		Limiter:  c.limiter.Status(),
		Adaptive: c.limiter.Stats(),
	}
}

// CacheStats 返回缓存统计。
func (c *Client) CacheStats(ctx context.Context) xtiered.Stats {
	return c.cache.Stats(ctx)
}

// ClearCache 清除本客户端前缀下的全部缓存条目，返回清除数量。
func (c *Client) ClearCache(ctx context.Context) (int, error) {
	return c.cache.ClearPrefix(ctx, c.keys.Prefix()+":")
}

// =============================================================================
// 管线
// =============================================================================

// execute 对列表端点运行完整管线，返回上游 JSON 载荷。
func (c *Client) execute(ctx context.Context, operation string, params url.Values) (json.RawMessage, error) {
	payload, err := c.run(ctx, operation, "", params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// download 对子资源端点运行同一管线，返回原始字节。
func (c *Client) download(ctx context.Context, operation, resourceID string, params url.Values) ([]byte, error) {
	return c.run(ctx, operation, resourceID, params)
}

// run 是管线主体：
//
//	缓存检查 → singleflight 合并 → 配额预检 → 限流准入（含自适应延迟）
//	→ 上游调用（有界重试）→ 归类记账 → 回填缓存
//
// resourceID 非空表示子资源拉取（原始字节载荷），空表示列表调用（JSON 载荷）。
func (c *Client) run(ctx context.Context, operation, resourceID string, params url.Values) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	logger := c.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("operation", operation),
	)

	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: operation,
		Kind:      xmetrics.KindClient,
	})
	var err error
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	key := c.cacheKey(operation, resourceID, params)

	if payload, ok := c.cacheGet(ctx, key, resourceID != ""); ok {
		logger.Debug("缓存命中", slog.String("key", key))
		return payload, nil
	}

	// 相同 key 的并发 miss 只放行一次上游调用。
	// 共享结果由首个调用方的 ctx 约束，后续合并者等待同一结果。
	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.fetch(ctx, operation, resourceID, params, key, logger)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// fetch 缓存 miss 后的上游路径。
func (c *Client) fetch(ctx context.Context, operation, resourceID string, params url.Values, key string, logger *slog.Logger) ([]byte, error) {
	// 配额预检先于限流与网络：额度不足时快速失败，不消耗任何资源
	if err := c.tracker.CheckAndReserve(operation); err != nil {
		logger.Warn("配额预检拒绝", slog.String("error", err.Error()))
		return nil, err
	}

	start := time.Now()
	payload, err := c.callUpstream(ctx, operation, resourceID, params)
	if err != nil {
		// 限流等待超时是本地信号，不参与上游错误归类
		if errors.Is(err, xthrottle.ErrAcquireTimeout) {
			return nil, err
		}
		classified, class := classifyUpstream(err)
		c.limiter.RecordError(class)
		logger.Warn("上游调用失败",
			slog.String("class", class.String()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", classified.Error()),
		)
		return nil, classified
	}

	// 只有确认成功才计入配额
	c.tracker.NoteUsage(operation)
	c.limiter.RecordSuccess()
	logger.Debug("上游调用成功",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("bytes", len(payload)),
	)

	c.cacheSet(ctx, key, payload, resourceID != "", logger)
	return payload, nil
}

// callUpstream 限流准入 + 上游调用，瞬态失败时有界重试。
// 每次尝试（含重试）都重新经过限流准入。
func (c *Client) callUpstream(ctx context.Context, operation, resourceID string, params url.Values) ([]byte, error) {
	attempt := func() ([]byte, error) {
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		if resourceID != "" {
			return c.transport.Download(ctx, operation, resourceID, params)
		}
		raw, err := c.transport.Call(ctx, operation, params)
		if err != nil {
			return nil, err
		}
		return []byte(raw), nil
	}

	if c.cfg.MaxRetries <= 0 {
		return attempt()
	}

	return retry.NewWithData[[]byte](
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)+1),
		retry.Delay(retryBaseDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, xthrottle.ErrAcquireTimeout) {
				return false
			}
			if errors.Is(err, ErrUpstreamRequest) {
				return true
			}
			var pe *ProviderError
			return errors.As(err, &pe) && pe.Retryable()
		}),
	).Do(attempt)
}

// =============================================================================
// 缓存读写
// =============================================================================

// cacheKey 由操作名与规范化参数构造稳定键。
func (c *Client) cacheKey(operation, resourceID string, params url.Values) string {
	kv := make(map[string]string, len(params)+1)
	for k, vs := range params {
		kv[k] = strings.Join(vs, ",")
	}
	if resourceID != "" {
		kv["_id"] = resourceID
	}
	return c.keys.Build(operation, kv)
}

// cacheGet 读取并解码缓存条目。解码失败按 miss 处理。
func (c *Client) cacheGet(ctx context.Context, key string, rawPayload bool) ([]byte, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}

	if rawPayload {
		var payload []byte
		if err := xtiered.Decode(data, &payload); err != nil {
			return nil, false
		}
		return payload, true
	}

	var raw json.RawMessage
	if err := xtiered.Decode(data, &raw); err != nil {
		return nil, false
	}
	return []byte(raw), true
}

// cacheSet 编码并回填缓存。缓存写入失败不影响调用结果。
func (c *Client) cacheSet(ctx context.Context, key string, payload []byte, rawPayload bool, logger *slog.Logger) {
	var (
		data []byte
		err  error
	)
	if rawPayload {
		data, err = xtiered.Encode(payload)
	} else {
		data, err = xtiered.Encode(json.RawMessage(payload))
	}
	if err != nil {
		logger.Warn("缓存编码失败", slog.String("error", err.Error()))
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		logger.Warn("缓存写入失败", slog.String("error", err.Error()))
	}
}

// =============================================================================
// 分块与分页辅助
// =============================================================================

// chunkIDs 将 ID 列表按上限切块，保持输入顺序。
func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// sleepChunkDelay 分块之间的礼貌间隔，ctx 取消时立即返回错误。
func (c *Client) sleepChunkDelay(ctx context.Context) error {
	if c.cfg.ChunkDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.ChunkDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("xvideo: 分块间隔被取消: %w", ctx.Err())
	}
}
