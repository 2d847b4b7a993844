package xvideo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/vidgate/pkg/business/xquota"
	"github.com/omeyang/vidgate/pkg/resilience/xthrottle"
)

// =============================================================================
// 测试夹具
// =============================================================================

type fakeCall struct {
	operation  string
	resourceID string
	params     url.Values
}

// fakeTransport 可编程的假上游，记录每次调用。
type fakeTransport struct {
	mu       sync.Mutex
	calls    []fakeCall
	handler  func(operation string, params url.Values) (json.RawMessage, error)
	download func(operation, resourceID string, params url.Values) ([]byte, error)
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Call(_ context.Context, operation string, params url.Values) (json.RawMessage, error) {
	f.record(fakeCall{operation: operation, params: cloneValues(params)})
	if f.handler == nil {
		return json.RawMessage(`{"items":[]}`), nil
	}
	return f.handler(operation, params)
}

func (f *fakeTransport) Download(_ context.Context, operation, resourceID string, params url.Values) ([]byte, error) {
	f.record(fakeCall{operation: operation, resourceID: resourceID, params: cloneValues(params)})
	if f.download == nil {
		return nil, &ProviderError{StatusCode: 404, Reason: reasonCaptionNotFound}
	}
	return f.download(operation, resourceID, params)
}

func (f *fakeTransport) record(c fakeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) callAt(i int) fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// testConfig 返回限流宽松、纯内存缓存的测试配置。
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.ChunkDelay = 0
	cfg.RateLimit = xthrottle.Config{
		BurstCapacity:  1000,
		CallsPerMinute: 60000,
		CallsPerHour:   3600000,
	}
	return cfg
}

func newTestClient(t *testing.T, cfg Config, ft *fakeTransport) *Client {
	t.Helper()
	c, err := New(cfg, WithTransport(ft))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// videosPage 构造 /videos 风格的响应载荷。
func videosPage(ids ...string) json.RawMessage {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{
			"id":             id,
			"snippet":        map[string]any{"title": "title-" + id},
			"contentDetails": map[string]any{"duration": "PT1M"},
			"statistics":     map[string]any{"viewCount": "100"},
		})
	}
	raw, _ := json.Marshal(map[string]any{"items": items})
	return raw
}

// =============================================================================
// 管线行为
// =============================================================================

func TestClient_New_Validation(t *testing.T) {
	t.Run("缺少凭证", func(t *testing.T) {
		cfg := testConfig()
		cfg.APIKey = ""
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("注入传输时无需凭证", func(t *testing.T) {
		cfg := testConfig()
		cfg.APIKey = ""
		c, err := New(cfg, WithTransport(&fakeTransport{}))
		require.NoError(t, err)
		assert.NoError(t, c.Close())
	})

	t.Run("非法配置", func(t *testing.T) {
		cfg := testConfig()
		cfg.Timeout = -1
		_, err := New(cfg, WithTransport(&fakeTransport{}))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestClient_CacheHitBypassesQuotaAndLimiter(t *testing.T) {
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			return videosPage("v1"), nil
		},
	}
	c := newTestClient(t, testConfig(), ft)
	ctx := context.Background()

	_, err := c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err)
	usedAfterFirst := c.QuotaStatus().Used

	// 相同请求第二次应命中缓存
	videos, err := c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err)
	require.Len(t, videos, 1)

	assert.Equal(t, 1, ft.callCount(), "缓存命中不得触发上游调用")
	assert.Equal(t, usedAfterFirst, c.QuotaStatus().Used, "缓存命中不得消耗配额")
}

func TestClient_QuotaGateBeforeNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.Quota = xquota.Config{DailyLimit: 50, Window: 24 * time.Hour}

	ft := &fakeTransport{}
	c := newTestClient(t, cfg, ft)

	// 搜索成本 100 超出剩余 50，预检必须在任何网络调用之前拒绝
	_, err := c.SearchVideos(context.Background(), SearchParams{Query: "golang"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xquota.ErrQuotaExceeded)
	assert.Equal(t, 0, ft.callCount(), "配额拒绝不得触发上游调用")

	var exceeded *xquota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, int64(100), exceeded.Cost)
}

func TestClient_UsageOnlyOnConfirmedSuccess(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			if fail.Load() {
				return nil, &ProviderError{StatusCode: 400, Reason: reasonBadRequest}
			}
			return videosPage("v1"), nil
		},
	}
	cfg := testConfig()
	cfg.MaxRetries = 0
	c := newTestClient(t, cfg, ft)
	ctx := context.Background()

	_, err := c.GetVideoDetails(ctx, []string{"v1"})
	require.Error(t, err)
	assert.Equal(t, int64(0), c.QuotaStatus().Used, "失败调用不得计入配额")

	fail.Store(false)
	_, err = c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.QuotaStatus().Used)
}

func TestClient_ErrorClassificationFeedsAdaptive(t *testing.T) {
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			return nil, &ProviderError{StatusCode: 403, Reason: reasonQuotaExceeded}
		},
	}
	cfg := testConfig()
	cfg.MaxRetries = 0
	c := newTestClient(t, cfg, ft)

	_, err := c.GetVideoDetails(context.Background(), []string{"v1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredential, "上游配额耗尽应归类为凭证错误")

	st := c.RateLimitStatus()
	assert.Equal(t, uint64(1), st.Adaptive.ErrorCount)
	assert.Equal(t, 10*time.Second, st.Adaptive.ExtraDelay, "配额类错误应施加最大惩罚")
}

func TestClient_TransientRetry(t *testing.T) {
	var attempts atomic.Int32
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			if attempts.Add(1) <= 2 {
				return nil, &ProviderError{StatusCode: 500}
			}
			return videosPage("v1"), nil
		},
	}
	cfg := testConfig()
	cfg.MaxRetries = 2
	c := newTestClient(t, cfg, ft)

	videos, err := c.GetVideoDetails(context.Background(), []string{"v1"})
	require.NoError(t, err, "瞬态失败应在重试预算内恢复")
	assert.Len(t, videos, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_PermanentErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			attempts.Add(1)
			return nil, &ProviderError{StatusCode: 400, Reason: reasonBadRequest}
		},
	}
	cfg := testConfig()
	cfg.MaxRetries = 3
	c := newTestClient(t, cfg, ft)

	_, err := c.GetVideoDetails(context.Background(), []string{"v1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermanentUpstream)
	assert.Equal(t, int32(1), attempts.Load(), "永久错误不得重试")
}

func TestClient_DeadlineBoundsPipeline(t *testing.T) {
	ft := &fakeTransport{}
	cfg := testConfig()
	// 极小的限流预算迫使管线进入等待
	cfg.RateLimit = xthrottle.Config{BurstCapacity: 1, CallsPerMinute: 1, CallsPerHour: 1}
	c := newTestClient(t, cfg, ft)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err, "首个令牌应立即可用")

	_, err = c.GetVideoDetails(ctx, []string{"v2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xthrottle.ErrAcquireTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_SingleflightMergesConcurrentMisses(t *testing.T) {
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			time.Sleep(50 * time.Millisecond)
			return videosPage("v1"), nil
		},
	}
	c := newTestClient(t, testConfig(), ft)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetVideoDetails(ctx, []string{"v1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ft.callCount(), "并发相同 miss 应合并为一次上游调用")
	assert.Equal(t, int64(1), c.QuotaStatus().Used)
}

func TestClient_Closed(t *testing.T) {
	c := newTestClient(t, testConfig(), &fakeTransport{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close 应幂等")

	_, err := c.GetVideoDetails(context.Background(), []string{"v1"})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_StatusSurfaces(t *testing.T) {
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			return videosPage("v1"), nil
		},
	}
	c := newTestClient(t, testConfig(), ft)
	ctx := context.Background()

	_, err := c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err)

	quota := c.QuotaStatus()
	assert.Equal(t, int64(1), quota.Used)
	assert.Equal(t, int64(10000), quota.Limit)

	rl := c.RateLimitStatus()
	assert.Equal(t, uint64(1), rl.Adaptive.SuccessCount)

	stats := c.CacheStats(ctx)
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.MemoryEntries)
}

func TestClient_ClearCache(t *testing.T) {
	var served atomic.Int32
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			served.Add(1)
			return videosPage("v1"), nil
		},
	}
	c := newTestClient(t, testConfig(), ft)
	ctx := context.Background()

	_, err := c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err)

	removed, err := c.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = c.GetVideoDetails(ctx, []string{"v1"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), served.Load(), "清缓存后应重新回源")
}

// 不同参数顺序产生相同缓存键。
func TestClient_CacheKeyStability(t *testing.T) {
	c := newTestClient(t, testConfig(), &fakeTransport{})

	a := url.Values{}
	a.Set("part", "snippet")
	a.Set("id", "v1,v2")
	b := url.Values{}
	b.Set("id", "v1,v2")
	b.Set("part", "snippet")

	assert.Equal(t, c.cacheKey("videos", "", a), c.cacheKey("videos", "", b))
	assert.NotEqual(t, c.cacheKey("videos", "", a), c.cacheKey("videos", "x", a))
}

// 限流准入统计应随成功调用增长。
func TestClient_LimiterStatusReflectsGrants(t *testing.T) {
	pages := 3
	ft := &fakeTransport{
		handler: func(_ string, params url.Values) (json.RawMessage, error) {
			return videosPage("v" + strconv.Itoa(len(params))), nil
		},
	}
	c := newTestClient(t, testConfig(), ft)
	ctx := context.Background()

	for i := range pages {
		_, err := c.GetVideoDetails(ctx, []string{fmt.Sprintf("video-%d", i)})
		require.NoError(t, err)
	}

	st := c.RateLimitStatus()
	assert.Equal(t, pages, st.Limiter.RequestsLastMinute)
}
