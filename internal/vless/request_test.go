package vless

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptedSet(t *testing.T, ids ...string) UserSet {
	t.Helper()
	set, err := ParseUserSet(idsCSV(ids))
	require.NoError(t, err)
	return set
}

func idsCSV(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

func encodeRequest(t *testing.T, version byte, id uuid.UUID, addons []byte, cmd Command, port uint16, atyp AddrType, addr []byte, payload []byte) []byte {
	t.Helper()
	buf := []byte{version}
	buf = append(buf, id[:]...)
	buf = append(buf, byte(len(addons)))
	buf = append(buf, addons...)
	buf = append(buf, byte(cmd))
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, port)
	buf = append(buf, portBytes...)
	buf = append(buf, byte(atyp))
	buf = append(buf, addr...)
	buf = append(buf, payload...)
	return buf
}

func TestParseRequestTCPHappyPath(t *testing.T) {
	id := uuid.MustParse("10e894da-61b1-4998-ac2b-e9ccb6af9d30")
	set := acceptedSet(t, id.String())

	payload := []byte("GET / HTTP/1.0\r\n\r\n")
	buf := encodeRequest(t, 0x00, id, nil, CommandTCP, 0x01BB, AddrTypeIPv4, []byte{1, 2, 3, 4}, payload)

	hdr, err := ParseRequest(buf, set)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), hdr.Version)
	assert.Equal(t, id, hdr.User)
	assert.Equal(t, CommandTCP, hdr.Command)
	assert.Equal(t, uint16(443), hdr.Port)
	assert.Equal(t, "1.2.3.4", hdr.Address)
	assert.Equal(t, payload, hdr.Payload)
}

func TestParseRequestIPv6Address(t *testing.T) {
	id := uuid.New()
	set := acceptedSet(t, id.String())

	addr := []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01}
	buf := encodeRequest(t, 0, id, nil, CommandTCP, 443, AddrTypeIPv6, addr, nil)

	hdr, err := ParseRequest(buf, set)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8:0:0:0:0:0:1", hdr.Address)
}

func TestParseRequestAuthRejected(t *testing.T) {
	accepted := acceptedSet(t, uuid.New().String())
	other := uuid.MustParse("00000000-0000-4000-8000-000000000000")

	buf := encodeRequest(t, 0, other, nil, CommandTCP, 443, AddrTypeIPv4, []byte{1, 2, 3, 4}, nil)

	_, err := ParseRequest(buf, accepted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed))
}

func TestParseRequestUDPOffPort53Rejected(t *testing.T) {
	id := uuid.New()
	set := acceptedSet(t, id.String())
	buf := encodeRequest(t, 0, id, nil, CommandUDP, 80, AddrTypeIPv4, []byte{1, 1, 1, 1}, nil)

	_, err := ParseRequest(buf, set)
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindMalformed, verr.Kind)
}

func TestParseRequestUDPOnPort53Accepted(t *testing.T) {
	id := uuid.New()
	set := acceptedSet(t, id.String())
	query := []byte{0x00, 0x1d, 0xAB, 0xCD}
	buf := encodeRequest(t, 0, id, nil, CommandUDP, 53, AddrTypeIPv4, []byte{1, 1, 1, 1}, query)

	hdr, err := ParseRequest(buf, set)
	require.NoError(t, err)
	assert.Equal(t, query, hdr.Payload)
}

func TestParseRequestTooShort(t *testing.T) {
	set := acceptedSet(t, uuid.New().String())
	_, err := ParseRequest(make([]byte, 23), set)
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindMalformed, verr.Kind)
}

func TestParseRequestMinimalDomainAccepted(t *testing.T) {
	id := uuid.New()
	set := acceptedSet(t, id.String())
	// Shortest possible valid request: a 1-char domain, no addons, no
	// payload — exactly 24 bytes, the floor spec.md §3 allows.
	buf := encodeRequest(t, 0, id, nil, CommandTCP, 443, AddrTypeDomain, []byte{1, 'a'}, nil)
	require.Len(t, buf, 24)

	hdr, err := ParseRequest(buf, set)
	require.NoError(t, err)
	assert.Equal(t, "a", hdr.Address)
	assert.Empty(t, hdr.Payload)
}

func TestParseRequestRoundTripWithAddons(t *testing.T) {
	id := uuid.New()
	set := acceptedSet(t, id.String())
	addons := []byte{0xde, 0xad, 0xbe, 0xef}
	domain := "example.com"
	addr := append([]byte{byte(len(domain))}, domain...)
	payload := []byte("hello world")

	buf := encodeRequest(t, 1, id, addons, CommandTCP, 8080, AddrTypeDomain, addr, payload)
	hdr, err := ParseRequest(buf, set)
	require.NoError(t, err)
	assert.Equal(t, byte(1), hdr.Version)
	assert.Equal(t, domain, hdr.Address)
	assert.Equal(t, uint16(8080), hdr.Port)
	assert.Equal(t, payload, hdr.Payload)
}

func TestBuildResponse(t *testing.T) {
	assert.Equal(t, []byte{0x05, 0x00}, BuildResponse(0x05))
}
