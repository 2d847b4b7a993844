// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog，支持动态级别与文件轮转
//   - xmetrics: 统一可观测性接口（指标、追踪），基于 OpenTelemetry
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 业务代码只依赖 Observer 抽象，后端可插拔
//   - 支持运行时动态级别控制
package observability
