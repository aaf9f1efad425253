//go:build !sonic

package jsonx

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Marshal encodes v without escaping HTML characters.
func Marshal(v any) ([]byte, error) {
	return json.MarshalNoEscape(v)
}

func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func Indent(dst *bytes.Buffer, src []byte, prefix, indent string) error {
	return json.Indent(dst, src, prefix, indent)
}

func Valid(data []byte) bool {
	return json.Valid(data)
}
