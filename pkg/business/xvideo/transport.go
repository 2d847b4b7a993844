package xvideo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/vidgate/pkg/business/xquota"
)

// =============================================================================
// 传输边界
// =============================================================================

// Transport 定义上游传输的最小契约。
// 编排器只依赖此接口，测试可注入假实现。
type Transport interface {
	// Call 对操作对应的列表端点发起调用，返回原始 JSON 载荷。
	Call(ctx context.Context, operation string, params url.Values) (json.RawMessage, error)

	// Download 拉取子资源的原始载荷（如字幕文件），返回原始字节。
	Download(ctx context.Context, operation, resourceID string, params url.Values) ([]byte, error)
}

// 操作名到上游路径的映射。
var operationPaths = map[string]string{
	xquota.OpSearch:     "/search",
	xquota.OpVideos:     "/videos",
	xquota.OpChannels:   "/channels",
	xquota.OpComments:   "/commentThreads",
	xquota.OpCaptions:   "/captions",
	xquota.OpCategories: "/videoCategories",
}

const (
	// maxResponseSize 响应体上限，防止异常上游拖垮内存。
	maxResponseSize = 10 << 20

	defaultHTTPTimeout = 30 * time.Second

	// 熔断参数：连续失败 5 次跳闸，30 秒后半开。
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// =============================================================================
// HTTP 传输实现
// =============================================================================

// HTTPTransportConfig HTTP 传输配置。
type HTTPTransportConfig struct {
	// BaseURL 上游 API 根地址，必填。
	BaseURL string

	// APIKey 凭证，随每个请求以 key 参数附带，必填。
	APIKey string

	// Timeout 单次 HTTP 请求超时，默认 30s。仅在未注入 Client 时生效。
	Timeout time.Duration

	// Client 自定义 HTTP 客户端，nil 时按 Timeout 创建。
	Client *http.Client

	// Logger 日志器，nil 时使用 slog.Default。
	Logger *slog.Logger

	// EnableBreaker 是否启用熔断。熔断只统计瞬态失败，
	// 永久性 4xx 不会使电路跳闸。
	EnableBreaker bool
}

// HTTPTransport 基于 net/http 的上游传输。
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport 创建 HTTP 传输。
func NewHTTPTransport(cfg HTTPTransportConfig) (*HTTPTransport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url 不能为空", ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &HTTPTransport{
		client:  client,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}

	if cfg.EnableBreaker {
		t.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "xvideo-upstream",
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerConsecutiveFailures
			},
			// 永久性上游拒绝说明请求本身有问题而非上游故障，不计入熔断
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				var pe *ProviderError
				return errors.As(err, &pe) && !pe.Retryable()
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("上游熔断状态变化",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		})
	}

	return t, nil
}

// Call 实现 Transport。
func (t *HTTPTransport) Call(ctx context.Context, operation string, params url.Values) (json.RawMessage, error) {
	path, ok := operationPaths[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
	body, err := t.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Download 实现 Transport。
func (t *HTTPTransport) Download(ctx context.Context, operation, resourceID string, params url.Values) ([]byte, error) {
	path, ok := operationPaths[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
	return t.get(ctx, path+"/"+url.PathEscape(resourceID), params)
}

func (t *HTTPTransport) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if t.breaker == nil {
		return t.doGet(ctx, path, params)
	}
	body, err := t.breaker.Execute(func() ([]byte, error) {
		return t.doGet(ctx, path, params)
	})
	if err != nil {
		// 电路打开期间快速失败，按瞬态网络失败对待
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
		}
		return nil, err
	}
	return body, nil
}

func (t *HTTPTransport) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("key", t.apiKey)

	reqURL := t.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %w", ErrUpstreamRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseProviderError(resp.StatusCode, body)
	}
	return body, nil
}

// =============================================================================
// 错误信封解析
// =============================================================================

// errorEnvelope 上游错误响应的线格式。
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// parseProviderError 从错误响应体提取结构化 reason。
// 信封解析失败时退化为只有状态码的 ProviderError。
func parseProviderError(status int, body []byte) *ProviderError {
	pe := &ProviderError{StatusCode: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return pe
	}
	pe.Message = env.Error.Message
	if len(env.Error.Errors) > 0 {
		pe.Reason = env.Error.Errors[0].Reason
	}
	return pe
}
