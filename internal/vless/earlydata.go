package vless

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeEarlyData decodes the URL-safe, possibly-unpadded base64 blob carried
// in the Sec-WebSocket-Protocol header into the bytes that should be
// prepended to the ingress byte stream ahead of anything the WebSocket
// delivers. An empty header yields an empty, non-nil buffer and no error.
// Padding is optional; any trailing "=" is stripped before decoding with the
// raw (unpadded) URL alphabet so both forms are accepted.
func DecodeEarlyData(header string) ([]byte, error) {
	if header == "" {
		return []byte{}, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(header, "="))
	if err != nil {
		return nil, fmt.Errorf("vless: early data is not valid url-safe base64: %w", err)
	}
	return data, nil
}
