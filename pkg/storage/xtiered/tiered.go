package xtiered

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Cache 接口
// =============================================================================

// Cache 定义两级缓存接口。载荷为字节序列，过期由 TTL 驱动。
//
// 持久层的操作性失败绝不会从这些方法返回：
// 失败被记录、计入降级计数，然后由进程内层接管。
type Cache interface {
	// Get 返回键对应的值。不存在或已过期时第二个返回值为 false。
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set 写入值。ttl <= 0 时使用配置的默认 TTL。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除键（两层都删除）。
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在且未过期。
	Exists(ctx context.Context, key string) (bool, error)

	// GetMany 批量获取，结果只包含命中的键。
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMany 批量写入，所有条目共用同一 TTL。
	SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// ClearPrefix 删除所有带指定前缀的键，返回删除数量。
	ClearPrefix(ctx context.Context, prefix string) (int, error)

	// Stats 返回两层的统计信息与持久层连通性。
	Stats(ctx context.Context) Stats

	// Close 关闭缓存，释放自建的持久层连接。
	Close() error
}

// Stats 缓存统计快照。
type Stats struct {
	// Enabled 缓存是否启用。
	Enabled bool `json:"enabled"`

	// MemoryEntries 进程内层当前条目数。
	MemoryEntries int `json:"memory_entries"`

	// MemoryCapacity 进程内层容量上限。
	MemoryCapacity int `json:"memory_capacity"`

	// DurableConfigured 是否配置了持久层。
	DurableConfigured bool `json:"durable_configured"`

	// DurableHealthy 持久层当前是否可达（PING）。
	DurableHealthy bool `json:"durable_healthy"`

	// Hits 累计命中次数。
	Hits int64 `json:"hits"`

	// Misses 累计未命中次数。
	Misses int64 `json:"misses"`

	// Fallbacks 持久层失败后降级到进程内层的累计次数。
	Fallbacks int64 `json:"fallbacks"`
}

// =============================================================================
// 配置
// =============================================================================

// Config 定义两级缓存配置。
type Config struct {
	// Enabled 是否启用缓存。禁用时所有操作为 no-op。
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	// DefaultTTL 默认条目过期时间。
	DefaultTTL time.Duration `koanf:"default_ttl" json:"default_ttl" yaml:"default_ttl"`

	// MaxMemoryEntries 进程内层最大条目数。
	MaxMemoryEntries int `koanf:"max_memory_entries" json:"max_memory_entries" yaml:"max_memory_entries"`

	// RedisAddr 持久层 Redis 地址。为空表示仅使用进程内层。
	RedisAddr string `koanf:"redis_addr" json:"redis_addr" yaml:"redis_addr"`
}

// DefaultConfig 返回默认缓存配置（启用，TTL 1 小时，1000 条目，无持久层）。
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		DefaultTTL:       time.Hour,
		MaxMemoryEntries: 1000,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("%w: default_ttl must be positive, got %s", ErrInvalidConfig, c.DefaultTTL)
	}
	if c.MaxMemoryEntries <= 0 {
		return fmt.Errorf("%w: max_memory_entries must be positive, got %d", ErrInvalidConfig, c.MaxMemoryEntries)
	}
	return nil
}

// =============================================================================
// 可选配置
// =============================================================================

// Options 定义缓存的可选依赖。
type Options struct {
	// Logger 日志记录器。不设置时使用 slog.Default()。
	Logger *slog.Logger

	// RedisClient 注入的 Redis 客户端。
	// 设置后 Config.RedisAddr 被忽略，Close 不关闭该客户端。
	RedisClient redis.UniversalClient
}

// Option 定义配置缓存的函数类型。
type Option func(*Options)

// WithLogger 设置日志记录器。传入 nil 时保持默认。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithRedisClient 注入 Redis 客户端。
// 客户端的生命周期由调用方管理，Close 不会关闭它。
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *Options) {
		if client != nil {
			o.RedisClient = client
		}
	}
}

// =============================================================================
// TieredCache
// =============================================================================

// TieredCache 是 Cache 的两级实现。
// 必须通过 New 创建，零值不可用。
type TieredCache struct {
	cfg    Config
	memory *memoryTier
	redis  redis.UniversalClient
	owns   bool // 是否由本实例创建（决定 Close 是否关闭连接）

	logger  *slog.Logger
	metrics *cacheMetrics
	closed  atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	fallbacks atomic.Int64
}

var _ Cache = (*TieredCache)(nil)

// New 创建两级缓存。
// 配置了持久层时会探测一次连通性；探测失败只记录告警，
// 不阻止创建（后续调用按降级路径处理）。
func New(cfg Config, opts ...Option) (*TieredCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &Options{Logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	c := &TieredCache{
		cfg:     cfg,
		memory:  newMemoryTier(cfg.MaxMemoryEntries),
		logger:  options.Logger,
		metrics: newCacheMetrics(),
	}

	switch {
	case options.RedisClient != nil:
		c.redis = options.RedisClient
	case cfg.RedisAddr != "":
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		c.owns = true
	}

	if c.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.redis.Ping(ctx).Err(); err != nil {
			c.logger.Warn("持久层连通性探测失败，降级到进程内层",
				slog.String("error", err.Error()))
		}
	}

	return c, nil
}

// Get 读取值：持久层优先，失败降级到进程内层。
// 持久层的确定性未命中后仍会查进程内层，
// 以覆盖持久层故障窗口期间写入的条目。
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.cfg.Enabled || c.closed.Load() {
		return nil, false, nil
	}
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			c.recordHit(ctx)
			return val, true, nil
		case err == redis.Nil:
			// 确定性未命中，继续查进程内层
		default:
			c.fallback(ctx, "get", err)
		}
	}

	if val, ok := c.memory.get(key); ok {
		c.recordHit(ctx)
		return val, true, nil
	}
	c.recordMiss(ctx)
	return nil, false, nil
}

// Set 写入值。持久层可用时写持久层，失败降级写进程内层。
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.cfg.Enabled || c.closed.Load() {
		return nil
	}
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	if c.redis != nil {
		err := c.redis.Set(ctx, key, value, ttl).Err()
		if err == nil {
			return nil
		}
		c.fallback(ctx, "set", err)
	}

	c.memory.set(key, value, ttl)
	return nil
}

// Delete 删除键。两层都删除；持久层失败被吸收。
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	if !c.cfg.Enabled || c.closed.Load() {
		return nil
	}
	if key == "" {
		return ErrEmptyKey
	}

	if c.redis != nil {
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			c.fallback(ctx, "delete", err)
		}
	}
	c.memory.delete(key)
	return nil
}

// Exists 检查键是否存在。
func (c *TieredCache) Exists(ctx context.Context, key string) (bool, error) {
	if !c.cfg.Enabled || c.closed.Load() {
		return false, nil
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	if c.redis != nil {
		n, err := c.redis.Exists(ctx, key).Result()
		if err == nil {
			if n > 0 {
				return true, nil
			}
		} else {
			c.fallback(ctx, "exists", err)
		}
	}
	return c.memory.exists(key), nil
}

// GetMany 批量读取。持久层使用 MGET，失败时逐键降级到进程内层。
func (c *TieredCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if !c.cfg.Enabled || c.closed.Load() || len(keys) == 0 {
		return result, nil
	}

	if c.redis != nil {
		vals, err := c.redis.MGet(ctx, keys...).Result()
		if err == nil {
			for i, v := range vals {
				if s, ok := v.(string); ok {
					result[keys[i]] = []byte(s)
				}
			}
		} else {
			c.fallback(ctx, "get_many", err)
		}
	}

	for _, key := range keys {
		if _, ok := result[key]; ok {
			continue
		}
		if val, ok := c.memory.get(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

// SetMany 批量写入。持久层使用 pipeline，失败时整批降级到进程内层。
func (c *TieredCache) SetMany(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if !c.cfg.Enabled || c.closed.Load() || len(items) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	if c.redis != nil {
		pipe := c.redis.Pipeline()
		for key, value := range items {
			pipe.Set(ctx, key, value, ttl)
		}
		_, err := pipe.Exec(ctx)
		if err == nil {
			return nil
		}
		c.fallback(ctx, "set_many", err)
	}

	for key, value := range items {
		c.memory.set(key, value, ttl)
	}
	return nil
}

// ClearPrefix 删除所有带指定前缀的键。
// 持久层通过 SCAN 游标遍历，避免阻塞式 KEYS。
func (c *TieredCache) ClearPrefix(ctx context.Context, prefix string) (int, error) {
	if !c.cfg.Enabled || c.closed.Load() {
		return 0, nil
	}

	removed := 0
	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) >= 100 {
				removed += c.delBatch(ctx, batch)
				batch = batch[:0]
			}
		}
		if len(batch) > 0 {
			removed += c.delBatch(ctx, batch)
		}
		if err := iter.Err(); err != nil {
			c.fallback(ctx, "clear_prefix", err)
		}
	}

	removed += c.memory.clearPrefix(prefix)
	return removed, nil
}

// delBatch 删除一批键，返回实际删除数量。失败被吸收。
func (c *TieredCache) delBatch(ctx context.Context, keys []string) int {
	n, err := c.redis.Del(ctx, keys...).Result()
	if err != nil {
		c.fallback(ctx, "clear_prefix_del", err)
		return 0
	}
	return int(n)
}

// Stats 返回统计快照。持久层连通性通过 PING 现场探测。
func (c *TieredCache) Stats(ctx context.Context) Stats {
	st := Stats{
		Enabled:           c.cfg.Enabled,
		MemoryEntries:     c.memory.len(),
		MemoryCapacity:    c.cfg.MaxMemoryEntries,
		DurableConfigured: c.redis != nil,
		Hits:              c.hits.Load(),
		Misses:            c.misses.Load(),
		Fallbacks:         c.fallbacks.Load(),
	}
	if c.redis != nil && !c.closed.Load() {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		st.DurableHealthy = c.redis.Ping(pingCtx).Err() == nil
	}
	return st
}

// Close 关闭缓存。只关闭自建的持久层连接，注入的客户端归调用方管理。
// 幂等。
func (c *TieredCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.memory.clear()
	if c.redis != nil && c.owns {
		return c.redis.Close()
	}
	return nil
}

// fallback 记录一次持久层失败并计入降级计数。
// 失败绝不向调用方传播。
func (c *TieredCache) fallback(ctx context.Context, op string, err error) {
	c.fallbacks.Add(1)
	c.metrics.recordFallback(ctx)
	c.logger.Warn("持久层操作失败，降级到进程内层",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

func (c *TieredCache) recordHit(ctx context.Context) {
	c.hits.Add(1)
	c.metrics.recordHit(ctx)
}

func (c *TieredCache) recordMiss(ctx context.Context) {
	c.misses.Add(1)
	c.metrics.recordMiss(ctx)
}
