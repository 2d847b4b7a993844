package xvideo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()

	cfg := testConfig()
	cfg.APIKey = ""
	p, err := NewPool(cfg, size, WithTransport(&fakeTransport{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPool_SameCredentialSameClient(t *testing.T) {
	p := newTestPool(t, 4)

	a, err := p.For("key-a")
	require.NoError(t, err)
	b, err := p.For("key-a")
	require.NoError(t, err)
	assert.Same(t, a, b, "同一凭证应复用实例")

	other, err := p.For("key-b")
	require.NoError(t, err)
	assert.NotSame(t, a, other, "不同凭证应得到独立实例")
	assert.Equal(t, 2, p.Len())
}

// 凭证之间的配额与限流互不串扰。
func TestPool_CredentialIsolation(t *testing.T) {
	p := newTestPool(t, 4)

	a, err := p.For("key-a")
	require.NoError(t, err)
	b, err := p.For("key-b")
	require.NoError(t, err)

	_, err = a.GetVideoDetails(context.Background(), []string{"v1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.QuotaStatus().Used)
	assert.Equal(t, int64(0), b.QuotaStatus().Used, "另一凭证的配额不受影响")
}

func TestPool_EvictionClosesClient(t *testing.T) {
	p := newTestPool(t, 2)

	a, err := p.For("key-a")
	require.NoError(t, err)

	for i := range 2 {
		_, err := p.For(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
	}

	// key-a 被 LRU 淘汰后实例应已关闭
	_, err = a.GetVideoDetails(context.Background(), []string{"v1"})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestPool_EmptyCredential(t *testing.T) {
	p := newTestPool(t, 2)
	_, err := p.For("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestPool_Close(t *testing.T) {
	p := newTestPool(t, 2)

	c, err := p.For("key-a")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "Close 应幂等")

	_, err = p.For("key-b")
	assert.ErrorIs(t, err, ErrClientClosed)

	_, err = c.GetVideoDetails(context.Background(), []string{"v1"})
	assert.ErrorIs(t, err, ErrClientClosed, "池关闭应关闭全部实例")
}
