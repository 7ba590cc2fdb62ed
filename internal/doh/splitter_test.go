package doh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lenPrefixed(payloads ...[]byte) []byte {
	var out []byte
	for _, p := range payloads {
		out = append(out, byte(len(p)>>8), byte(len(p)))
		out = append(out, p...)
	}
	return out
}

func TestSplitterSingleChunkMultiplePackets(t *testing.T) {
	a := []byte("query-a")
	b := []byte("query-b")
	var s Splitter
	got := s.Feed(lenPrefixed(a, b))
	assert.Equal(t, [][]byte{a, b}, got)
}

func TestSplitterPacketSplitAcrossChunks(t *testing.T) {
	a := []byte("0123456789")
	framed := lenPrefixed(a)

	var s Splitter
	got := s.Feed(framed[:5])
	assert.Empty(t, got)
	got = s.Feed(framed[5:])
	assert.Equal(t, [][]byte{a}, got)
}

func TestSplitterLengthPrefixSplitAcrossChunks(t *testing.T) {
	a := []byte("hello")
	framed := lenPrefixed(a)

	var s Splitter
	got := s.Feed(framed[:1])
	assert.Empty(t, got)
	got = s.Feed(framed[1:])
	assert.Equal(t, [][]byte{a}, got)
}
