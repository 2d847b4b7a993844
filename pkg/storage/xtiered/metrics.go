package xtiered

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "xtiered"

// 指标名称。
const (
	metricHitsTotal      = "xtiered.hits.total"
	metricMissesTotal    = "xtiered.misses.total"
	metricFallbacksTotal = "xtiered.fallbacks.total"
)

// cacheMetrics 缓存指标。
// 指标创建失败时降级为 no-op，绝不影响缓存路径。
type cacheMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	fallbacks metric.Int64Counter
}

// newCacheMetrics 从全局 MeterProvider 创建指标。
func newCacheMetrics() *cacheMetrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &cacheMetrics{}
	m.hits, _ = meter.Int64Counter( //nolint:errcheck // 指标创建失败降级为 no-op
		metricHitsTotal,
		metric.WithDescription("cache hits across both tiers"),
		metric.WithUnit("1"),
	)
	m.misses, _ = meter.Int64Counter( //nolint:errcheck // 指标创建失败降级为 no-op
		metricMissesTotal,
		metric.WithDescription("cache misses across both tiers"),
		metric.WithUnit("1"),
	)
	m.fallbacks, _ = meter.Int64Counter( //nolint:errcheck // 指标创建失败降级为 no-op
		metricFallbacksTotal,
		metric.WithDescription("durable tier failures absorbed by the in-process tier"),
		metric.WithUnit("1"),
	)
	return m
}

func (m *cacheMetrics) recordHit(ctx context.Context) {
	if m == nil || m.hits == nil {
		return
	}
	m.hits.Add(context.WithoutCancel(ctx), 1)
}

func (m *cacheMetrics) recordMiss(ctx context.Context) {
	if m == nil || m.misses == nil {
		return
	}
	m.misses.Add(context.WithoutCancel(ctx), 1)
}

func (m *cacheMetrics) recordFallback(ctx context.Context) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Add(context.WithoutCancel(ctx), 1)
}
