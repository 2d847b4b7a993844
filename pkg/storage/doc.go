// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xtiered: 两层缓存（进程内 LRU + Redis 持久层），持久层故障时自动降级
//
// 设计原则：
//   - 提供统一的接口抽象，后端可替换
//   - 内置可观测性（命中率、降级计数）
//   - 持久层不可用不阻塞读写路径
package storage
