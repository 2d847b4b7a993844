package xvideo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/vidgate/pkg/resilience/xthrottle"
)

func TestClassifyUpstream(t *testing.T) {
	tests := []struct {
		name      string
		in        error
		wantKind  error
		wantClass xthrottle.ErrorClass
	}{
		{
			name:      "上游配额耗尽",
			in:        &ProviderError{StatusCode: 403, Reason: reasonQuotaExceeded},
			wantKind:  ErrCredential,
			wantClass: xthrottle.ClassQuota,
		},
		{
			name:      "每日上限",
			in:        &ProviderError{StatusCode: 403, Reason: reasonDailyLimit},
			wantKind:  ErrCredential,
			wantClass: xthrottle.ClassQuota,
		},
		{
			name:      "上游速率限制 reason",
			in:        &ProviderError{StatusCode: 403, Reason: reasonRateLimit},
			wantKind:  ErrTransientUpstream,
			wantClass: xthrottle.ClassRate,
		},
		{
			name:      "429 无 reason",
			in:        &ProviderError{StatusCode: 429},
			wantKind:  ErrTransientUpstream,
			wantClass: xthrottle.ClassRate,
		},
		{
			name:      "凭证无效",
			in:        &ProviderError{StatusCode: 400, Reason: reasonKeyInvalid},
			wantKind:  ErrCredential,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "API 未启用",
			in:        &ProviderError{StatusCode: 403, Reason: reasonAccessNotEnabled},
			wantKind:  ErrCredential,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "401 无 reason",
			in:        &ProviderError{StatusCode: 401},
			wantKind:  ErrCredential,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "评论关闭",
			in:        &ProviderError{StatusCode: 403, Reason: reasonCommentsDisabled},
			wantKind:  ErrResourceUnavailable,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "视频不存在",
			in:        &ProviderError{StatusCode: 404, Reason: reasonVideoNotFound},
			wantKind:  ErrPermanentUpstream,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "参数错误",
			in:        &ProviderError{StatusCode: 400, Reason: reasonBadRequest},
			wantKind:  ErrPermanentUpstream,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "5xx",
			in:        &ProviderError{StatusCode: 503},
			wantKind:  ErrTransientUpstream,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "网络失败",
			in:        errors.New("dial tcp: connection refused"),
			wantKind:  ErrTransientUpstream,
			wantClass: xthrottle.ClassGeneric,
		},
		{
			name:      "未知 4xx",
			in:        &ProviderError{StatusCode: 418},
			wantKind:  ErrUnclassifiedUpstream,
			wantClass: xthrottle.ClassGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, class := classifyUpstream(tt.in)
			assert.ErrorIs(t, got, tt.wantKind)
			assert.Equal(t, tt.wantClass, class)
		})
	}
}

// 归类后的错误保留原始错误链。
func TestClassifyUpstream_PreservesChain(t *testing.T) {
	pe := &ProviderError{StatusCode: 403, Reason: reasonQuotaExceeded, Message: "out"}
	got, _ := classifyUpstream(pe)

	var inner *ProviderError
	require.ErrorAs(t, got, &inner)
	assert.Equal(t, "out", inner.Message)

	var ue *UpstreamError
	require.ErrorAs(t, got, &ue)
	assert.Equal(t, reasonQuotaExceeded, ue.Reason)
	assert.Equal(t, 403, ue.StatusCode)
}

func TestIsAbsence(t *testing.T) {
	disabled, _ := classifyUpstream(&ProviderError{StatusCode: 403, Reason: reasonCommentsDisabled})
	assert.True(t, isAbsence(disabled))

	notFound, _ := classifyUpstream(&ProviderError{StatusCode: 404, Reason: reasonVideoNotFound})
	assert.False(t, isAbsence(notFound), "缺 reason 白名单时不算缺失")
	assert.True(t, isAbsence(notFound, reasonVideoNotFound))

	quota, _ := classifyUpstream(&ProviderError{StatusCode: 403, Reason: reasonQuotaExceeded})
	assert.False(t, isAbsence(quota, reasonVideoNotFound))

	assert.False(t, isAbsence(errors.New("plain")))
}
