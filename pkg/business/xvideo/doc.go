// Package xvideo 提供视频平台数据 API 的配额感知、限流、带缓存的客户端。
//
// # 设计理念
//
// 上游平台同时施加每日配额与多窗口速率限制，xvideo 把所有调用方
// 与这些约束隔离开：每次逻辑调用都经过固定管线
//
//	缓存检查 → 配额预检 → 限流准入 → 上游调用 → 错误归类 → 记账 → 回填缓存
//
// 缓存命中完全绕过配额与限流；配额预检失败不消耗限流令牌、
// 不产生网络调用；调用方 deadline 约束整条管线（包括限流等待）。
//
// # 核心组件
//
//   - Client：请求编排器，组合 xthrottle / xquota / xtiered
//   - Transport：上游传输边界（最小契约，不绑定具体 SDK）
//   - Pool：按凭证隔离的客户端实例池（凭证之间不共享令牌桶与配额）
//   - Warmer：按 cron 计划经正常管线预热缓存
//
// # 分批与分页
//
// ID 列表超过单次调用上限（50）时自动分块、顺序发起、按输入顺序
// 拼接结果；分页操作沿续页令牌逐页拉取，每页独立经过完整管线。
//
// # 错误模型
//
// 上游错误按结构化的 status + reason 归类为类型化错误
// （瞬态 / 永久 / 凭证 / 未归类），绝不匹配 message 文本；
// 子资源缺失（评论关闭、无字幕）被吸收为空结果而非错误。
package xvideo
