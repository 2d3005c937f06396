package jsoncodec

import (
	"errors"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

var ErrInvalidUTF8 = errors.New("jsoncodec: payload is not valid UTF-8")

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// DecodeUTF8 decodes a UTF-8 JSON body into a generic value (map, slice,
// string, float64, bool or nil).
func DecodeUTF8(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}
	var v any
	if err := defaultConfig.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
