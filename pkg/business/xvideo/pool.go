package xvideo

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/omeyang/vidgate/pkg/util/xlru"
)

// =============================================================================
// 凭证池
// =============================================================================

// defaultPoolSize 池内缓存的客户端实例上限。
const defaultPoolSize = 16

// Pool 按凭证隔离的客户端池。
// 每份凭证对应独立的 Client 实例：令牌桶、自适应退避与每日配额
// 互不串扰。实例按 LRU 淘汰，淘汰时自动关闭。
//
// Pool 并发安全。
type Pool struct {
	mu      sync.Mutex
	clients *xlru.Cache[string, *Client]
	baseCfg Config
	opts    []Option
	logger  *slog.Logger
	closed  bool
}

// NewPool 创建凭证池。
// baseCfg 作为每个客户端的模板，APIKey 在获取时按凭证覆盖；
// size 为实例上限，0 使用默认值。opts 透传给每个新建的客户端。
func NewPool(baseCfg Config, size int, opts ...Option) (*Pool, error) {
	if err := baseCfg.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultPoolSize
	}

	p := &Pool{
		baseCfg: baseCfg,
		opts:    opts,
		logger:  slog.Default(),
	}

	clients, err := xlru.New(
		xlru.Config{Size: size},
		xlru.WithOnEvicted(func(_ string, c *Client) {
			// 被淘汰的实例可能仍被持有方引用，Close 幂等且
			// 只停内部组件，在途调用会以 ErrClientClosed 结束
			_ = c.Close()
		}),
	)
	if err != nil {
		return nil, err
	}
	p.clients = clients
	return p, nil
}

// For 返回凭证对应的客户端，不存在时创建。
func (p *Pool) For(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClientClosed
	}
	if c, ok := p.clients.Get(apiKey); ok {
		return c, nil
	}

	cfg := p.baseCfg
	cfg.APIKey = apiKey
	c, err := New(cfg, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("xvideo: 创建凭证客户端失败: %w", err)
	}
	p.clients.Set(apiKey, c)
	p.logger.Debug("凭证池新建客户端", slog.Int("pool_size", p.clients.Len()))
	return c, nil
}

// Len 返回池内当前实例数。
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients.Len()
}

// Close 关闭池及全部实例。幂等。
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	// Clear 触发全部淘汰回调，逐个关闭实例
	p.clients.Clear()
	p.clients.Close()
	return nil
}
