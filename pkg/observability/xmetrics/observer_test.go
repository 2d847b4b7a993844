package xmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInternal, "Internal"},
		{KindServer, "Server"},
		{KindClient, "Client"},
		{Kind(99), "Kind(99)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestNoopObserver_Start(t *testing.T) {
	t.Run("正常 ctx", func(t *testing.T) {
		ctx := context.Background()
		retCtx, span := NoopObserver{}.Start(ctx, SpanOptions{})
		assert.Equal(t, ctx, retCtx)
		require.NotNil(t, span)
		span.End(Result{}) // 不应 panic
	})

	t.Run("nil ctx 兜底", func(t *testing.T) {
		retCtx, span := NoopObserver{}.Start(nil, SpanOptions{}) //nolint:staticcheck // 故意传 nil 验证兜底
		assert.NotNil(t, retCtx)
		assert.NotNil(t, span)
	})
}

// nilSpanObserver 返回 nil span，用于验证 Start 的兜底逻辑。
type nilSpanObserver struct{}

func (nilSpanObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	return nil, nil
}

func TestStart(t *testing.T) {
	t.Run("nil observer 返回 NoopSpan", func(t *testing.T) {
		ctx, span := Start(context.Background(), nil, SpanOptions{})
		assert.NotNil(t, ctx)
		assert.IsType(t, NoopSpan{}, span)
	})

	t.Run("nil ctx 归一化", func(t *testing.T) {
		ctx, span := Start(nil, NoopObserver{}, SpanOptions{}) //nolint:staticcheck // 故意传 nil 验证兜底
		assert.NotNil(t, ctx)
		assert.NotNil(t, span)
	})

	t.Run("observer 返回 nil 时兜底", func(t *testing.T) {
		ctx, span := Start(context.Background(), nilSpanObserver{}, SpanOptions{})
		assert.NotNil(t, ctx)
		assert.IsType(t, NoopSpan{}, span)
	})
}

func TestResolveStatus(t *testing.T) {
	assert.Equal(t, StatusOK, resolveStatus(Result{}))
	assert.Equal(t, StatusError, resolveStatus(Result{Err: errors.New("boom")}))
	assert.Equal(t, StatusOK, resolveStatus(Result{Status: StatusOK, Err: errors.New("boom")}))
	assert.Equal(t, StatusError, resolveStatus(Result{Status: StatusError}))
}

func TestAttrConstructors(t *testing.T) {
	assert.Equal(t, Attr{Key: "s", Value: "v"}, String("s", "v"))
	assert.Equal(t, Attr{Key: "b", Value: true}, Bool("b", true))
	assert.Equal(t, Attr{Key: "i", Value: 1}, Int("i", 1))
	assert.Equal(t, Attr{Key: "i64", Value: int64(2)}, Int64("i64", 2))
	assert.Equal(t, Attr{Key: "f", Value: 1.5}, Float64("f", 1.5))
	assert.Equal(t, Attr{Key: "d", Value: time.Second}, Duration("d", time.Second))
	assert.Equal(t, Attr{Key: "a", Value: []int{1}}, Any("a", []int{1}))
}
