package xtiered

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// 键构造常量。
const (
	// DefaultKeyPrefix 默认命名空间前缀。
	DefaultKeyPrefix = "vidgate"

	// maxLogicalKeyLen 逻辑键长度上限。
	// 超过上限时参数段被替换为定长摘要，适配后端键长限制。
	maxLogicalKeyLen = 200
)

// KeyBuilder 从（操作名 + 规范化参数）推导稳定的缓存键。
//
// 键必须与进程、重启无关：相同的逻辑请求在任何实例上都命中
// 同一条目。因此参数按键名排序后拼接（顺序无关），
// 摘要使用内容哈希（xxhash）而非语言级对象哈希。
type KeyBuilder struct {
	prefix string
	maxLen int
}

// NewKeyBuilder 创建键构造器。prefix 为空时使用 DefaultKeyPrefix。
func NewKeyBuilder(prefix string) KeyBuilder {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeyBuilder{prefix: prefix, maxLen: maxLogicalKeyLen}
}

// Build 构造缓存键：prefix:operation:k1=v1&k2=v2（参数排序）。
// 超长时参数段替换为 16 位十六进制 xxhash 摘要。
func (kb KeyBuilder) Build(operation string, params map[string]string) string {
	canonical := canonicalParams(params)
	key := kb.prefix + ":" + operation + ":" + canonical
	if len(key) <= kb.maxLen {
		return key
	}
	return fmt.Sprintf("%s:%s:%016x", kb.prefix, operation, xxhash.Sum64String(canonical))
}

// Prefix 返回命名空间前缀。
func (kb KeyBuilder) Prefix() string {
	return kb.prefix
}

// canonicalParams 生成顺序无关的参数规范编码。
func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}
