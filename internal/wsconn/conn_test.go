package wsconn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeEchoesSubprotocolAndChunks(t *testing.T) {
	serverConnCh := make(chan *Conn, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/vless", func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, r.Header.Get("Sec-WebSocket-Protocol"))
		require.NoError(t, err)
		serverConnCh <- conn
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/vless"
	clientConn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Sec-WebSocket-Protocol": {"early"}})
	require.NoError(t, err)
	defer clientConn.Close()
	assert.Equal(t, "early", resp.Header.Get("Sec-WebSocket-Protocol"))

	serverConn := <-serverConnCh
	require.NoError(t, clientConn.WriteMessage(websocket.BinaryMessage, []byte("hello")))
	chunk, err := serverConn.ReadChunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), chunk)

	require.NoError(t, serverConn.WriteChunk([]byte("world")))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), data)

	assert.Equal(t, StateOpen, serverConn.State())
	serverConn.CloseSafely()
	assert.Equal(t, StateClosed, serverConn.State())
	serverConn.CloseSafely()
}

func TestWriteChunkFailsWhenNotOpen(t *testing.T) {
	serverConnCh := make(chan *Conn, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/vless", func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, "")
		require.NoError(t, err)
		serverConnCh <- conn
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/vless"
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-serverConnCh
	serverConn.CloseSafely()
	err = serverConn.WriteChunk([]byte("late"))
	require.Error(t, err)
}
