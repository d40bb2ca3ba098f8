// Package jsoncodec centralises JSON encoding for the event wire format and
// the provider HTTP clients, so the codec can be swapped in one place.
package jsoncodec

import "github.com/bytedance/sonic"

// ConfigStd keeps encoding/json-compatible semantics on the wire.
var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}
