package xtiered

import "errors"

// =============================================================================
// 配置错误
// =============================================================================

var (
	// ErrInvalidConfig 表示缓存配置无效。
	ErrInvalidConfig = errors.New("xtiered: invalid config")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	ErrEmptyKey = errors.New("xtiered: empty key")
)

// =============================================================================
// 编码错误
// =============================================================================

var (
	// ErrUnknownEncoding 表示载荷的判别字节无法识别。
	ErrUnknownEncoding = errors.New("xtiered: unknown encoding discriminant")

	// ErrEmptyPayload 表示待解码的载荷为空。
	ErrEmptyPayload = errors.New("xtiered: empty payload")

	// ErrEncodeFailed 表示值编码失败。
	ErrEncodeFailed = errors.New("xtiered: encode failed")

	// ErrDecodeFailed 表示载荷解码失败。
	ErrDecodeFailed = errors.New("xtiered: decode failed")
)

// =============================================================================
// 状态错误
// =============================================================================

var (
	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xtiered: cache closed")
)
