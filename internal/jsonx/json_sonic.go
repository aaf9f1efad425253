//go:build sonic

package jsonx

import (
	"bytes"

	"github.com/bytedance/sonic"
	gojson "github.com/goccy/go-json"
)

var api = sonic.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// Marshal encodes v without escaping HTML characters.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// sonic has no indenter, goccy's is used for both builds
func Indent(dst *bytes.Buffer, src []byte, prefix, indent string) error {
	return gojson.Indent(dst, src, prefix, indent)
}

func Valid(data []byte) bool {
	return sonic.Valid(data)
}
