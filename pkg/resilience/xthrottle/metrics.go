package xthrottle

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "xthrottle"

// 指标名称。
const (
	metricAcquiresTotal = "xthrottle.acquires.total"
	metricDeniedTotal   = "xthrottle.denied.total"
	metricWaitDuration  = "xthrottle.wait.duration"
)

// limiterMetrics 限流器指标。
// 指标创建失败时降级为 no-op，绝不影响准入路径。
type limiterMetrics struct {
	acquires metric.Int64Counter
	denied   metric.Int64Counter
	wait     metric.Float64Histogram
}

// newLimiterMetrics 从全局 MeterProvider 创建指标。
func newLimiterMetrics() *limiterMetrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &limiterMetrics{}
	m.acquires, _ = meter.Int64Counter( //nolint:errcheck // 指标创建失败降级为 no-op
		metricAcquiresTotal,
		metric.WithDescription("total granted admissions"),
		metric.WithUnit("1"),
	)
	m.denied, _ = meter.Int64Counter( //nolint:errcheck // 指标创建失败降级为 no-op
		metricDeniedTotal,
		metric.WithDescription("admissions aborted by caller deadline"),
		metric.WithUnit("1"),
	)
	m.wait, _ = meter.Float64Histogram( //nolint:errcheck // 指标创建失败降级为 no-op
		metricWaitDuration,
		metric.WithDescription("time spent waiting for admission"),
		metric.WithUnit("s"),
	)
	return m
}

// recordAcquire 记录一次成功准入及其等待耗时。
// 使用不可取消的 context，保证请求取消后指标仍能记录。
func (m *limiterMetrics) recordAcquire(ctx context.Context, waited time.Duration) {
	if m == nil {
		return
	}
	mctx := context.WithoutCancel(ctx)
	if m.acquires != nil {
		m.acquires.Add(mctx, 1)
	}
	if m.wait != nil {
		m.wait.Record(mctx, waited.Seconds())
	}
}

// recordDenied 记录一次因 deadline 中止的准入等待。
func (m *limiterMetrics) recordDenied(ctx context.Context) {
	if m == nil || m.denied == nil {
		return
	}
	m.denied.Add(context.WithoutCancel(ctx), 1)
}
