package xtiered

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// 编码判别字节。
// 同一存储中两种编码的条目可以共存，解码按首字节分派。
const (
	// encodingJSON 自描述文本编码，用于可 JSON 表达的值。
	encodingJSON byte = 'J'

	// encodingGob 不透明二进制编码，用于 JSON 无法表达的值。
	encodingGob byte = 'B'
)

// Encode 将值编码为带判别前缀的字节序列。
//
// 可 JSON 序列化的值（map、切片、基础类型及其组合）写入 'J' + JSON；
// 其余值回退到 'B' + gob。格式选择只发生在编码侧，
// 解码侧完全由判别字节驱动。
func Encode(v any) ([]byte, error) {
	if data, err := json.Marshal(v); err == nil {
		out := make([]byte, 0, len(data)+1)
		out = append(out, encodingJSON)
		return append(out, data...), nil
	}

	var buf bytes.Buffer
	buf.WriteByte(encodingGob)
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

// Decode 按判别字节解码载荷到 dest（必须是指针）。
// 未知判别字节返回 ErrUnknownEncoding，空载荷返回 ErrEmptyPayload。
func Decode(data []byte, dest any) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}

	switch data[0] {
	case encodingJSON:
		if err := json.Unmarshal(data[1:], dest); err != nil {
			return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		return nil
	case encodingGob:
		if err := gob.NewDecoder(bytes.NewReader(data[1:])).Decode(dest); err != nil {
			return fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownEncoding, data[0])
	}
}
