// Package xquota 提供针对上游 API 每日配额预算的本地跟踪。
//
// # 设计理念
//
// 上游平台按操作计费（例如搜索 100 单位、条目查询 1 单位），
// 每个凭证每天有固定预算。xquota 在本地累计已用成本，
// 在发起任何网络调用之前 fail-fast：预算不足时直接返回
// ErrQuotaExceeded，不消耗限流令牌，也不产生网络请求。
//
// # 窗口语义
//
// 预算窗口按天滚动：检查时若已越过重置时刻，用量清零、
// 重置时刻精确前进一个窗口（与越过了多久无关）。
//
// # 预留语义
//
// CheckAndReserve 只做预检，不做物理扣减；实际用量由调用方
// 在上游调用确认成功后通过 NoteUsage 记入。失败的调用不计费，
// 与上游"失败请求不扣配额"的计费口径一致。
//
// # 共享策略
//
// 一个 Tracker 对应一个凭证。不同凭证必须使用独立实例，
// 不得共享预算状态。
package xquota
