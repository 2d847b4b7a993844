package xvideo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/vidgate/pkg/business/xquota"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc, enableBreaker bool) *HTTPTransport {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := NewHTTPTransport(HTTPTransportConfig{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		EnableBreaker: enableBreaker,
	})
	require.NoError(t, err)
	return tr
}

func TestHTTPTransport_Validation(t *testing.T) {
	_, err := NewHTTPTransport(HTTPTransportConfig{APIKey: "k"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewHTTPTransport(HTTPTransportConfig{BaseURL: "http://x"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestHTTPTransport_Call(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"), "凭证应随请求附带")
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"items":[]}`))
	}, false)

	params := url.Values{}
	params.Set("q", "golang")
	raw, err := tr.Call(context.Background(), xquota.OpSearch, params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(raw))
}

func TestHTTPTransport_UnknownOperation(t *testing.T) {
	tr := newTestTransport(t, func(http.ResponseWriter, *http.Request) {}, false)
	_, err := tr.Call(context.Background(), "nonsense", nil)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestHTTPTransport_Download(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/captions/cap-1", r.URL.Path)
		assert.Equal(t, "srt", r.URL.Query().Get("tfmt"))
		_, _ = w.Write([]byte("srt payload"))
	}, false)

	params := url.Values{}
	params.Set("tfmt", "srt")
	data, err := tr.Download(context.Background(), xquota.OpCaptions, "cap-1", params)
	require.NoError(t, err)
	assert.Equal(t, []byte("srt payload"), data)
}

func TestHTTPTransport_ErrorEnvelope(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota gone","errors":[{"reason":"quotaExceeded"}]}}`))
	}, false)

	_, err := tr.Call(context.Background(), xquota.OpSearch, nil)
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 403, pe.StatusCode)
	assert.Equal(t, "quotaExceeded", pe.Reason)
	assert.Equal(t, "quota gone", pe.Message)
}

func TestHTTPTransport_MalformedErrorBody(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}, false)

	_, err := tr.Call(context.Background(), xquota.OpSearch, nil)
	require.Error(t, err)

	// 信封解析失败退化为仅状态码
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 500, pe.StatusCode)
	assert.Empty(t, pe.Reason)
	assert.True(t, pe.Retryable())
}

func TestHTTPTransport_NetworkError(t *testing.T) {
	tr, err := NewHTTPTransport(HTTPTransportConfig{
		// 不可路由的地址
		BaseURL: "http://127.0.0.1:1",
		APIKey:  "k",
	})
	require.NoError(t, err)

	_, err = tr.Call(context.Background(), xquota.OpSearch, nil)
	assert.ErrorIs(t, err, ErrUpstreamRequest)
}

func TestHTTPTransport_ContextCancel(t *testing.T) {
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Call(ctx, xquota.OpSearch, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// 熔断
// =============================================================================

func TestHTTPTransport_BreakerOpensOnConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, true)

	ctx := context.Background()
	for range breakerConsecutiveFailures {
		_, err := tr.Call(ctx, xquota.OpSearch, nil)
		require.Error(t, err)
	}
	before := hits.Load()

	// 电路打开后快速失败，不再触达上游
	_, err := tr.Call(ctx, xquota.OpSearch, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamRequest)
	assert.Equal(t, before, hits.Load(), "电路打开期间不得发起请求")
}

func TestHTTPTransport_BreakerIgnoresPermanentErrors(t *testing.T) {
	var hits atomic.Int32
	tr := newTestTransport(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"errors":[{"reason":"videoNotFound"}]}}`))
	}, true)

	ctx := context.Background()
	for range breakerConsecutiveFailures + 2 {
		_, err := tr.Call(ctx, xquota.OpVideos, nil)
		var pe *ProviderError
		require.ErrorAs(t, err, &pe, "永久错误不得触发熔断快速失败")
	}
	assert.Equal(t, int32(breakerConsecutiveFailures+2), hits.Load())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(&ProviderError{StatusCode: 500}))
	assert.True(t, IsRetryable(&ProviderError{StatusCode: 429}))
	assert.False(t, IsRetryable(&ProviderError{StatusCode: 404}))
	assert.True(t, IsRetryable(&UpstreamError{Kind: ErrTransientUpstream, Err: errors.New("x")}))
	assert.False(t, IsRetryable(&UpstreamError{Kind: ErrPermanentUpstream, Err: errors.New("x")}))
}
