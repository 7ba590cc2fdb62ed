package doh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

func buildMessage(t *testing.T, id uint16) []byte {
	t.Helper()
	name, err := dnsmessage.NewName("example.com.")
	require.NoError(t, err)
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: id, Response: true})
	require.NoError(t, b.StartQuestions())
	require.NoError(t, b.Question(dnsmessage.Question{Name: name, Type: dnsmessage.TypeA, Class: dnsmessage.ClassINET}))
	msg, err := b.Finish()
	require.NoError(t, err)
	return msg
}

func TestQuerySuccess(t *testing.T) {
	reply := buildMessage(t, 0xABCD)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, mimeType, r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", mimeType)
		w.Write(reply)
	}))
	defer ts.Close()

	a := NewAdapter(ts.URL)
	got, err := a.Query(context.Background(), []byte{0x00, 0x1d})
	require.NoError(t, err)
	assert.Equal(t, reply, got)
}

func TestQueryHTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a := NewAdapter(ts.URL)
	_, err := a.Query(context.Background(), []byte{0x00})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindHTTPFailed, derr.Kind)
}

func TestQueryMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a dns message"))
	}))
	defer ts.Close()

	a := NewAdapter(ts.URL)
	_, err := a.Query(context.Background(), []byte{0x00})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindMalformedResponse, derr.Kind)
}
