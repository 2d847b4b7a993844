// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xlru: LRU 缓存，泛型支持、自动 TTL 过期、淘汰回调
//
// 设计原则：
//   - 泛型优先，零反射
//   - 并发安全，跨平台兼容
package util
