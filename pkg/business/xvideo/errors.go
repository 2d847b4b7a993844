package xvideo

import (
	"errors"
	"fmt"

	"github.com/omeyang/vidgate/pkg/resilience/xthrottle"
)

// =============================================================================
// 配置/状态错误
// =============================================================================

var (
	// ErrInvalidConfig 表示客户端配置无效。
	ErrInvalidConfig = errors.New("xvideo: invalid config")

	// ErrMissingAPIKey 表示 API 凭证未配置。
	ErrMissingAPIKey = errors.New("xvideo: missing api_key")

	// ErrNilTransport 表示上游传输为 nil。
	ErrNilTransport = errors.New("xvideo: nil transport")

	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xvideo: nil client")

	// ErrClientClosed 表示客户端已关闭。
	ErrClientClosed = errors.New("xvideo: client closed")

	// ErrUnknownOperation 表示操作名没有对应的上游端点。
	ErrUnknownOperation = errors.New("xvideo: unknown operation")
)

// =============================================================================
// 上游错误类别（哨兵）
// =============================================================================

var (
	// ErrUpstreamRequest 表示请求未到达上游（网络失败、连接超时）。
	// 可重试。
	ErrUpstreamRequest = errors.New("xvideo: upstream request failed")

	// ErrTransientUpstream 表示上游瞬态错误（5xx / 429 等价）。
	// 调用方可自行退避重试。
	ErrTransientUpstream = errors.New("xvideo: transient upstream error")

	// ErrPermanentUpstream 表示不可重试的上游错误（参数错误、资源不存在）。
	ErrPermanentUpstream = errors.New("xvideo: permanent upstream error")

	// ErrCredential 表示凭证被上游拒绝：无效、被禁用，
	// 或上游侧配额真实耗尽（区别于本地 xquota 的预检拒绝）。
	ErrCredential = errors.New("xvideo: credential rejected by provider")

	// ErrResourceUnavailable 表示子资源缺失或被禁用（软错误）。
	// 编排器边界将其吸收为空结果，调用方通常看不到此错误。
	ErrResourceUnavailable = errors.New("xvideo: sub-resource unavailable")

	// ErrUnclassifiedUpstream 表示无法按已知模式归类的上游错误。
	ErrUnclassifiedUpstream = errors.New("xvideo: unclassified upstream error")
)

// =============================================================================
// ProviderError
// =============================================================================

// ProviderError 携带上游错误信封的结构化内容。
// Reason 是上游的机器可读错误码，归类只依赖 StatusCode + Reason，
// 绝不匹配 Message 文本。
type ProviderError struct {
	// StatusCode HTTP 状态码。
	StatusCode int

	// Reason 机器可读错误原因（如 quotaExceeded、commentsDisabled）。
	Reason string

	// Message 人类可读消息，仅用于日志。
	Message string
}

func (e *ProviderError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("xvideo: provider error: status=%d reason=%s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("xvideo: provider error: status=%d", e.StatusCode)
}

// Retryable 5xx 与 429 视为可重试。
func (e *ProviderError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// =============================================================================
// UpstreamError
// =============================================================================

// UpstreamError 是归类后的上游错误。
// 通过 errors.Is 匹配对应的类别哨兵，Unwrap 返回原始错误。
type UpstreamError struct {
	// Kind 类别哨兵（ErrTransientUpstream 等）。
	Kind error

	// StatusCode 上游状态码，网络失败时为 0。
	StatusCode int

	// Reason 上游机器可读错误原因。
	Reason string

	// Err 原始错误。
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind.Error(), e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is(err, ErrTransientUpstream) 等类别匹配。
// 设计决策: 使用直接 == 比较，类别哨兵均为 errors.New 创建的简单值。
func (e *UpstreamError) Is(target error) bool {
	return target == e.Kind
}

// Retryable 只有瞬态类与网络请求类错误可重试。
func (e *UpstreamError) Retryable() bool {
	return e.Kind == ErrTransientUpstream || e.Kind == ErrUpstreamRequest
}

// =============================================================================
// 错误归类
// =============================================================================

// 上游的机器可读 reason 模式。
// 归类只认这些结构化值，未知 reason 落入未归类类别。
const (
	reasonQuotaExceeded     = "quotaExceeded"
	reasonDailyLimit        = "dailyLimitExceeded"
	reasonRateLimit         = "rateLimitExceeded"
	reasonUserRateLimit     = "userRateLimitExceeded"
	reasonKeyInvalid        = "keyInvalid"
	reasonAccessNotEnabled  = "accessNotConfigured"
	reasonForbidden         = "forbidden"
	reasonCommentsDisabled  = "commentsDisabled"
	reasonVideoNotFound     = "videoNotFound"
	reasonChannelNotFound   = "channelNotFound"
	reasonCaptionNotFound   = "captionNotFound"
	reasonBadRequest        = "badRequest"
	reasonInvalidParameter  = "invalidParameter"
	reasonRequiredParameter = "required"
)

// classifyUpstream 将传输层错误归类为类型化错误，
// 并返回馈入自适应限流器的错误类别。
//
// 归类依据 status + reason 的已知模式：
//   - 上游配额耗尽（403 + quota 类 reason）→ ErrCredential + ClassQuota
//   - 上游速率限制（429 或 rate 类 reason）→ ErrTransientUpstream + ClassRate
//   - 凭证无效/未启用（400/401/403 + key 类 reason）→ ErrCredential
//   - 子资源缺失/禁用 → ErrResourceUnavailable（软）
//   - 资源不存在 / 参数错误 → ErrPermanentUpstream
//   - 5xx / 网络失败 → ErrTransientUpstream
//   - 其余 → ErrUnclassifiedUpstream
func classifyUpstream(err error) (error, xthrottle.ErrorClass) {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		// 未到达上游的网络类失败，按瞬态处理
		return &UpstreamError{Kind: ErrTransientUpstream, Err: err}, xthrottle.ClassGeneric
	}

	wrap := func(kind error) *UpstreamError {
		return &UpstreamError{Kind: kind, StatusCode: pe.StatusCode, Reason: pe.Reason, Err: pe}
	}

	switch pe.Reason {
	case reasonQuotaExceeded, reasonDailyLimit:
		return wrap(ErrCredential), xthrottle.ClassQuota
	case reasonRateLimit, reasonUserRateLimit:
		return wrap(ErrTransientUpstream), xthrottle.ClassRate
	case reasonKeyInvalid, reasonAccessNotEnabled, reasonForbidden:
		return wrap(ErrCredential), xthrottle.ClassGeneric
	case reasonCommentsDisabled:
		return wrap(ErrResourceUnavailable), xthrottle.ClassGeneric
	case reasonVideoNotFound, reasonChannelNotFound, reasonCaptionNotFound:
		return wrap(ErrPermanentUpstream), xthrottle.ClassGeneric
	case reasonBadRequest, reasonInvalidParameter, reasonRequiredParameter:
		return wrap(ErrPermanentUpstream), xthrottle.ClassGeneric
	}

	switch {
	case pe.StatusCode == 429:
		return wrap(ErrTransientUpstream), xthrottle.ClassRate
	case pe.StatusCode == 401:
		return wrap(ErrCredential), xthrottle.ClassGeneric
	case pe.StatusCode >= 500:
		return wrap(ErrTransientUpstream), xthrottle.ClassGeneric
	case pe.StatusCode == 400:
		return wrap(ErrPermanentUpstream), xthrottle.ClassGeneric
	case pe.StatusCode == 404:
		return wrap(ErrPermanentUpstream), xthrottle.ClassGeneric
	default:
		return wrap(ErrUnclassifiedUpstream), xthrottle.ClassGeneric
	}
}

// isAbsence 判断错误是否表示子资源的合法缺失。
// extraReasons 允许操作按自身语义补充缺失类 reason
// （例如评论操作将 videoNotFound 也视为缺失）。
func isAbsence(err error, extraReasons ...string) bool {
	if errors.Is(err, ErrResourceUnavailable) {
		return true
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	for _, r := range extraReasons {
		if ue.Reason == r {
			return true
		}
	}
	return false
}

// IsRetryable 检查错误是否可由调用方重试。
// 规则：实现 Retryable() 的错误按其返回值；其余默认不可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re interface {
		error
		Retryable() bool
	}
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}
