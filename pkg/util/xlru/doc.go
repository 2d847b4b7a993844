// Package xlru 提供带 TTL 的泛型 LRU 缓存。
//
// xlru 基于 github.com/hashicorp/golang-lru/v2/expirable 封装，
// 作为有界本地容器使用，例如按凭证缓存客户端实例。
//
// # 核心特性
//
//   - 泛型支持：任意 comparable 键类型和任意值类型
//   - TTL 过期：条目超过 TTL 后 Get 返回 miss，0 表示永不过期
//   - LRU 淘汰：容量满时淘汰最久未访问的条目
//   - 淘汰回调：WithOnEvicted 可感知条目被淘汰（用于释放资源）
//   - 并发安全：所有操作线程安全
//
// # 注意事项
//
//   - 淘汰回调在底层库锁内同步执行，严禁在回调中调用 Cache 自身方法（会死锁），
//     耗时逻辑应转发到外部 channel 异步处理
//   - TTL 从 Set 时刻计算，Set 覆盖已有 key 会刷新 TTL，Get 不刷新
//   - TTL > 0 时底层库会启动后台清理 goroutine，使用完毕必须调用 Close() 释放
package xlru
