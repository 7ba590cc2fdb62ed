package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/vlessgate/gateway/internal/vless"
	"github.com/vlessgate/gateway/internal/wsconn"
)

// RetryFunc dials a fresh remote stream, rebinds it to the session, and
// starts a new Pipe over it with a nil RetryFunc, so a second retry round
// can never occur. It is only invoked once, since Session.TakeRetry gates
// it.
type RetryFunc func(ctx context.Context)

// Pipe copies bytes from the session's currently bound remote stream to
// the WebSocket, prefixing the one-shot VLESS response header to the
// first chunk, and invoking retry if the remote closed without ever
// delivering a byte. The WS→remote direction is not owned by Pipe: it is
// driven by a single wsToRemote forwarder, started once by the caller for
// the whole session and always targeting whatever stream is currently
// bound (via Session.Remote), so a retry round never has to wait on it —
// that forwarder may be sitting in a blocking WebSocket read the entire
// time a retry dial is in flight, since the client that already sent its
// request has nothing more to send until it sees a reply.
func Pipe(ctx context.Context, s *Session, ws *wsconn.Conn, responseHeader []byte, retry RetryFunc) {
	remote := s.Remote()

	hasIncomingData := remoteToWS(ctx, s, remote, ws, responseHeader)

	if !hasIncomingData && retry != nil {
		slog.Info("upstream produced no data, retrying", "session", s.LogPrefix, "kind", KindUpstreamIdle)
		remote.Close()
		retry(ctx)
		return
	}
	if !hasIncomingData {
		slog.Debug("upstream produced no data", "session", s.LogPrefix, "kind", KindUpstreamIdle)
	}

	ws.CloseSafely()
	remote.Close()
}

// remoteToWS copies chunks read from remote to ws, emitting the response
// header exactly once as a prefix on the first chunk, and reports whether
// at least one chunk was ever delivered.
func remoteToWS(ctx context.Context, s *Session, remote io.Reader, ws *wsconn.Conn, responseHeader []byte) bool {
	buf := make([]byte, 32*1024)
	hasIncomingData := false
	first := true
	for {
		n, err := remote.Read(buf)
		if n > 0 {
			if ws.State() != wsconn.StateOpen {
				slog.Warn("remote produced data after websocket left OPEN state", "session", s.LogPrefix)
				return hasIncomingData
			}
			chunk := buf[:n]
			if first {
				framed := make([]byte, 0, len(responseHeader)+n)
				framed = append(framed, responseHeader...)
				framed = append(framed, chunk...)
				chunk = framed
				first = false
			}
			if werr := ws.WriteChunk(chunk); werr != nil {
				slog.Warn("write to websocket failed", "session", s.LogPrefix, "err", werr)
				return hasIncomingData
			}
			hasIncomingData = true
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote read ended", "session", s.LogPrefix, "err", err)
			}
			return hasIncomingData
		}
		select {
		case <-ctx.Done():
			return hasIncomingData
		default:
		}
	}
}

// wsToRemote continuously forwards WebSocket messages to the session's
// currently bound remote stream until the WebSocket errors or closes;
// back-pressure is inherited from the remote's Write. It re-fetches
// Session.Remote on every iteration rather than capturing a single stream,
// so it keeps forwarding correctly across a retry's rebind without being
// restarted. It is started exactly once per session, outside of Pipe, and
// closes the currently bound remote on exit so a pipe round blocked
// reading that remote unblocks once the WebSocket itself goes away.
func wsToRemote(s *Session, ws *wsconn.Conn) {
	for {
		chunk, err := ws.ReadChunk()
		if err != nil {
			break
		}
		if _, err := s.Remote().Write(chunk); err != nil {
			break
		}
	}
	s.Remote().Close()
}

// buildResponseHeader is a tiny convenience wrapper kept at the package
// boundary so call sites never construct the two response bytes by hand.
func buildResponseHeader(version byte) []byte {
	return vless.BuildResponse(version)
}
