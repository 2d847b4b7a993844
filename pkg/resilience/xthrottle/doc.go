// Package xthrottle 提供面向上游 API 的多窗口令牌桶限流器。
//
// # 设计理念
//
// 上游视频平台 API 同时存在突发、每分钟、每小时三档速率约束，
// xthrottle 将三档约束建模为三个连续补充的令牌桶，
// 准入判定是全有或全无的：只有三个桶同时有足够令牌才放行。
//
// # 核心组件
//
//   - Limiter：准入接口（Acquire / TryAcquire / Status / Reset / Close）
//   - TokenBucketLimiter：三窗口令牌桶实现，连续按比例补充令牌
//   - AdaptiveLimiter：包装任意 Limiter，依据成功/失败反馈动态附加准入延迟
//
// # 补充模型
//
// 令牌按真实流逝时间连续补充（虚拟补充），而非固定周期重置，
// 避免窗口边界处的惊群效应。令牌不足时按缺口最小等待时间休眠后重查。
//
// # 超时语义
//
// Acquire 在等待准入期间响应 context 取消：deadline 到期时返回
// ErrAcquireTimeout（包装 ctx.Err()），不消耗任何令牌。
//
// # 自适应退避
//
// AdaptiveLimiter 按错误类别累加额外延迟（配额类 > 速率类 > 一般类，
// 各有上限），每次成功线性衰减，下限为零。所有惩罚/衰减常量
// 均通过 AdaptiveConfig 配置，不做硬编码。
package xthrottle
