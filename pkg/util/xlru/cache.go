package xlru

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxSize 缓存最大条目数上限。
const maxSize = 1 << 24

// Config 定义缓存配置。
type Config struct {
	// Size 缓存最大条目数。
	// 必须大于 0 且不超过 16,777,216。
	Size int

	// TTL 条目过期时间。
	// 0 表示永不过期，不允许负值。
	TTL time.Duration
}

// Option 定义缓存可选配置函数类型。
type Option[K comparable, V any] func(*options[K, V])

type options[K comparable, V any] struct {
	onEvicted func(key K, value V)
}

// WithOnEvicted 设置条目被淘汰时的回调函数。
//
// 回调在底层库的互斥锁内同步执行（Set 触发淘汰、Clear、Close 等路径均会调用）。
// 调用方严禁在回调中调用 Cache 自身的任何方法，否则会死锁；
// 耗时操作应发送到外部 channel 异步处理。
func WithOnEvicted[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(o *options[K, V]) {
		o.onEvicted = fn
	}
}

// Cache 是带 TTL 的 LRU 缓存。
// 必须通过 [New] 创建，零值不可用。
// 调用 Close 后，读操作返回零值/false，写操作静默忽略。
type Cache[K comparable, V any] struct {
	lru       *expirable.LRU[K, V]
	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建新的 LRU 缓存。
// cfg.Size <= 0 返回 ErrInvalidSize；超过上限返回 ErrSizeExceedsMax；
// cfg.TTL < 0 返回 ErrInvalidTTL。
func New[K comparable, V any](cfg Config, opts ...Option[K, V]) (*Cache[K, V], error) {
	if cfg.Size <= 0 {
		return nil, ErrInvalidSize
	}
	if cfg.Size > maxSize {
		return nil, ErrSizeExceedsMax
	}
	if cfg.TTL < 0 {
		return nil, ErrInvalidTTL
	}

	o := &options[K, V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return &Cache[K, V]{
		lru: expirable.NewLRU(cfg.Size, o.onEvicted, cfg.TTL),
	}, nil
}

// Get 获取缓存值。
// 键不存在、已过期或缓存已关闭时返回零值和 false。
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	if c.closed.Load() {
		return value, false
	}
	return c.lru.Get(key)
}

// Set 设置缓存值。返回值表示是否触发了 LRU 淘汰，而非操作是否成功。
//
//   - key 已存在时更新值并刷新 TTL，返回 false
//   - key 不存在且缓存已满时淘汰最久未访问的条目，返回 true
//   - 缓存已关闭时静默忽略并返回 false
func (c *Cache[K, V]) Set(key K, value V) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Add(key, value)
}

// Delete 删除缓存条目。
// 返回 true 表示键存在并被删除。
func (c *Cache[K, V]) Delete(key K) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Remove(key)
}

// Clear 清空所有缓存条目。
// 所有条目的淘汰回调都会被调用。
func (c *Cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	c.lru.Purge()
}

// Len 返回当前缓存条目数。
// 返回值可能包含已过期但尚未被后台清理的条目。
func (c *Cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	return c.lru.Len()
}

// Contains 检查键是否存在（不更新访问顺序）。
// 内部使用 Peek 而非底层 Contains，保证与 Get 的 TTL 语义一致。
func (c *Cache[K, V]) Contains(key K) bool {
	if c.closed.Load() {
		return false
	}
	_, ok := c.lru.Peek(key)
	return ok
}

// Close 关闭缓存，清空条目并停止 TTL 清理 goroutine。
// 幂等：多次调用只执行一次清理。
func (c *Cache[K, V]) Close() {
	c.closed.Store(true)
	c.closeOnce.Do(func() {
		c.lru.Purge()
		stopCleanupGoroutine(c.lru)
	})
}

// stopCleanupGoroutine 停止 expirable.LRU 内部的清理 goroutine。
// 返回 true 表示成功停止，false 表示降级为无操作。
//
// golang-lru/v2@v2.0.7 在 TTL > 0 时启动后台清理 goroutine，但未提供公开的
// 停止方法。此函数通过 reflect + unsafe 访问内部 done 通道（chan struct{}）
// 并关闭它，使后台 goroutine 退出。升级 golang-lru 版本时需验证上游是否已
// 提供公开 Close()，若有则应改用上游实现。
func stopCleanupGoroutine(lru any) (stopped bool) {
	defer func() {
		// done 通道已关闭时 close 会 panic，静默降级
		if r := recover(); r != nil {
			stopped = false
		}
	}()

	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}

	doneField := v.Elem().FieldByName("done")
	if !doneField.IsValid() || doneField.IsNil() {
		return false
	}

	if doneField.Type() != reflect.TypeOf(make(chan struct{})) {
		return false
	}

	doneCh := *(*chan struct{})(unsafe.Pointer(doneField.UnsafeAddr())) //nolint:gosec // 有意使用 unsafe 访问内部字段
	close(doneCh)
	return true
}
