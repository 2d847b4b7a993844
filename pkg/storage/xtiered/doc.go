// Package xtiered 提供两级缓存：共享持久层（Redis）+ 进程内有界层。
//
// # 设计理念
//
// 缓存不可用绝不能变成调用方可见的错误。持久层的任何操作性失败
// （超时、连接错误）都会记录日志并透明降级到进程内层；
// 调用方观察到的只是可能的缓存未命中。
//
// # 层级语义
//
//   - 配置了 Redis 时优先读写持久层，跨进程/重启共享
//   - 持久层失败或未配置时使用进程内层
//   - 进程内层容量固定，写满时按"最早过期优先"淘汰（非严格 LRU），
//     访问时惰性清理已过期条目
//
// # 编码格式
//
// 值使用带判别字节前缀的标签化编码（Encode/Decode）：
// 'J' + JSON 用于可 JSON 表达的值，'B' + gob 用于其余值。
// 解码按判别字节分派，不依赖"尝试解析再捕获失败"。
//
// # 键构造
//
// KeyBuilder 从（操作名 + 规范化参数）推导稳定键：
// 参数按键名排序后拼接，与进程、重启无关；
// 超长键以 xxhash 定长摘要替代参数段，适配后端键长限制。
package xtiered
