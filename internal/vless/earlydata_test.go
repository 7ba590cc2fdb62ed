package vless

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEarlyDataEmpty(t *testing.T) {
	data, err := DecodeEarlyData("")
	require.NoError(t, err)
	assert.Equal(t, []byte{}, data)
}

func TestDecodeEarlyDataRoundTrip(t *testing.T) {
	want := []byte("early bytes, go!")
	encoded := base64.RawURLEncoding.EncodeToString(want)

	got, err := DecodeEarlyData(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeEarlyDataInvalid(t *testing.T) {
	_, err := DecodeEarlyData("not-valid-base64!!!")
	require.Error(t, err)
}
