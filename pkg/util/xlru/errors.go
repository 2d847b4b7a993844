package xlru

import "errors"

var (
	// ErrInvalidSize 表示缓存容量配置无效（必须大于 0）。
	ErrInvalidSize = errors.New("xlru: size must be positive")

	// ErrSizeExceedsMax 表示缓存容量超过上限。
	ErrSizeExceedsMax = errors.New("xlru: size exceeds maximum")

	// ErrInvalidTTL 表示 TTL 配置无效（不允许负值）。
	ErrInvalidTTL = errors.New("xlru: negative ttl")
)
