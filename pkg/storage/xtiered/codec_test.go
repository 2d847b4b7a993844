package xtiered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_JSONDiscriminant(t *testing.T) {
	data, err := Encode(map[string]any{"query": "golang", "max": float64(50)})
	require.NoError(t, err)
	assert.Equal(t, encodingJSON, data[0], "简单值应使用 JSON 编码")

	var decoded map[string]any
	require.NoError(t, Decode(data, &decoded))
	assert.Equal(t, "golang", decoded["query"])
	assert.Equal(t, float64(50), decoded["max"])
}

func TestEncode_GobFallback(t *testing.T) {
	// complex128 无法用 JSON 表达，应回退到二进制编码
	original := complex(3.0, 4.0)
	data, err := Encode(original)
	require.NoError(t, err)
	assert.Equal(t, encodingGob, data[0])

	var decoded complex128
	require.NoError(t, Decode(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestDecode_MixedEntriesCoexist(t *testing.T) {
	// 同一存储中 'J' 与 'B' 条目共存，解码只看判别字节
	jsonData, err := Encode([]string{"a", "b"})
	require.NoError(t, err)
	gobData, err := Encode(complex(1.0, 2.0))
	require.NoError(t, err)

	var s []string
	require.NoError(t, Decode(jsonData, &s))
	assert.Equal(t, []string{"a", "b"}, s)

	var c complex128
	require.NoError(t, Decode(gobData, &c))
	assert.Equal(t, complex(1.0, 2.0), c)
}

func TestDecode_Errors(t *testing.T) {
	t.Run("空载荷", func(t *testing.T) {
		var v any
		assert.ErrorIs(t, Decode(nil, &v), ErrEmptyPayload)
	})

	t.Run("未知判别字节", func(t *testing.T) {
		var v any
		assert.ErrorIs(t, Decode([]byte{'X', 1, 2}, &v), ErrUnknownEncoding)
	})

	t.Run("损坏的 JSON 载荷", func(t *testing.T) {
		var v map[string]any
		assert.ErrorIs(t, Decode([]byte{encodingJSON, '{'}, &v), ErrDecodeFailed)
	})
}
