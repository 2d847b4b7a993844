package xvideo

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmerConfig_Validate(t *testing.T) {
	valid := WarmerConfig{Schedule: "*/5 * * * *", VideoIDs: []string{"v1"}}
	assert.NoError(t, valid.Validate())

	t.Run("缺少计划", func(t *testing.T) {
		cfg := valid
		cfg.Schedule = ""
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("缺少目标", func(t *testing.T) {
		cfg := valid
		cfg.VideoIDs = nil
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("非法 cron 表达式", func(t *testing.T) {
		cfg := valid
		cfg.Schedule = "not a cron"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestNewWarmer_NilClient(t *testing.T) {
	_, err := NewWarmer(nil, WarmerConfig{Schedule: "* * * * *", VideoIDs: []string{"v"}}, nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestWarmer_WarmNow(t *testing.T) {
	var upstream atomic.Int32
	ft := &fakeTransport{
		handler: func(_ string, params url.Values) (json.RawMessage, error) {
			upstream.Add(1)
			return videosPage(strings.Split(params.Get("id"), ",")...), nil
		},
	}
	c := newTestClient(t, testConfig(), ft)

	w, err := NewWarmer(c, WarmerConfig{
		Schedule: "*/30 * * * *",
		VideoIDs: []string{"v1", "v2"},
	}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.WarmNow(ctx))
	require.Equal(t, int32(1), upstream.Load())

	// 预热后的读取应命中缓存
	videos, err := c.GetVideoDetails(ctx, []string{"v1", "v2"})
	require.NoError(t, err)
	assert.Len(t, videos, 2)
	assert.Equal(t, int32(1), upstream.Load(), "预热命中后不得再回源")
}

func TestWarmer_WarmNowPropagatesError(t *testing.T) {
	ft := &fakeTransport{
		handler: func(string, url.Values) (json.RawMessage, error) {
			return nil, &ProviderError{StatusCode: 403, Reason: reasonQuotaExceeded}
		},
	}
	cfg := testConfig()
	cfg.MaxRetries = 0
	c := newTestClient(t, cfg, ft)

	w, err := NewWarmer(c, WarmerConfig{
		Schedule: "* * * * *",
		VideoIDs: []string{"v1"},
	}, nil)
	require.NoError(t, err)

	err = w.WarmNow(context.Background())
	assert.ErrorIs(t, err, ErrCredential)
}

func TestWarmer_StartStop(t *testing.T) {
	c := newTestClient(t, testConfig(), &fakeTransport{})

	w, err := NewWarmer(c, WarmerConfig{
		Schedule: "0 3 * * *",
		VideoIDs: []string{"v1"},
		Timeout:  time.Second,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrWarmerRunning, "重复启动应拒绝")

	w.Stop()
	w.Stop() // 幂等

	// 停止后可再次启动
	require.NoError(t, w.Start())
	w.Stop()
}
