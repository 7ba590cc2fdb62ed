package gateway

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	"github.com/vlessgate/gateway/internal/config"
	"github.com/vlessgate/gateway/internal/doh"
	"github.com/vlessgate/gateway/internal/vless"
	"github.com/vlessgate/gateway/internal/wsconn"
)

// chunkSource yields the decoded early-data buffer as the first chunk (if
// non-empty), then successive WebSocket messages, so the rest of the FSM
// never has to know whether a given chunk came from the upgrade header or
// the wire.
type chunkSource struct {
	ws            *wsconn.Conn
	earlyData     []byte
	consumedEarly bool
}

func (c *chunkSource) Next() ([]byte, error) {
	if !c.consumedEarly {
		c.consumedEarly = true
		if len(c.earlyData) > 0 {
			return c.earlyData, nil
		}
	}
	return c.ws.ReadChunk()
}

// Serve drives one accepted WebSocket connection through the full ingress
// lifecycle: early-data decode, one-time header parse, authentication,
// branch into TCP or DNS mode, then stream until close. It blocks until
// the session ends.
func Serve(ctx context.Context, ws *wsconn.Conn, earlyDataProtocolHeader string, cfg *config.UpstreamConfig, dispatcher *Dispatcher, dohAdapter *doh.Adapter) {
	defer ws.CloseSafely()

	earlyData, err := vless.DecodeEarlyData(earlyDataProtocolHeader)
	if err != nil {
		slog.Warn("early data decode failed", "kind", KindEarlyDataDecode, "err", err)
		return
	}

	source := &chunkSource{ws: ws, earlyData: earlyData}
	first, err := source.Next()
	if err != nil {
		slog.Debug("no initial chunk received", "kind", KindTransportError, "err", err)
		return
	}

	hdr, err := vless.ParseRequest(first, cfg.AcceptedUsers)
	if err != nil {
		kind := KindMalformedHeader
		if errors.Is(err, vless.ErrAuthFailed) {
			kind = KindAuthFailed
		}
		slog.Warn("request header rejected", "kind", kind, "err", err)
		return
	}

	session := NewSession(hdr)
	slog.Info("session accepted", "session", session.LogPrefix, "user", session.User)

	if session.Mode == ModeDNS {
		serveDNS(ctx, session, ws, source, hdr, dohAdapter)
		return
	}
	serveTCP(ctx, session, ws, source, hdr, dispatcher)
}

// serveTCP implements the Outbound Dispatcher's primary/retry dial policy
// and then starts the duplex pipe. The WS→remote direction is started
// exactly once, right after the first successful bind, as a standalone
// goroutine that outlives any retry round; Pipe only drives remote→WS and
// the retry decision.
func serveTCP(ctx context.Context, s *Session, ws *wsconn.Conn, source *chunkSource, hdr *vless.RequestHeader, dispatcher *Dispatcher) {
	responseHeader := buildResponseHeader(hdr.Version)

	remote, err := dispatcher.DialPrimary(ctx, s)
	if err != nil {
		slog.Warn("primary dial failed", "session", s.LogPrefix, "kind", KindDialFailedPrimary, "err", err)
		if !s.TakeRetry() {
			return
		}
		remote, err = dispatcher.DialRetry(ctx, s)
		if err != nil {
			slog.Warn("retry dial failed", "session", s.LogPrefix, "kind", KindDialFailedRetry, "err", err)
			return
		}
		s.BindRemote(remote)
		if !writeInitialPayload(s, remote, hdr.Payload) {
			return
		}
		go wsToRemote(s, ws)
		Pipe(ctx, s, ws, responseHeader, nil)
		return
	}

	s.BindRemote(remote)
	if !writeInitialPayload(s, remote, hdr.Payload) {
		return
	}
	go wsToRemote(s, ws)

	retry := func(ctx context.Context) {
		if !s.TakeRetry() {
			return
		}
		newRemote, err := dispatcher.DialRetry(ctx, s)
		if err != nil {
			slog.Warn("retry dial failed", "session", s.LogPrefix, "kind", KindDialFailedRetry, "err", err)
			return
		}
		s.BindRemote(newRemote)
		if !writeInitialPayload(s, newRemote, hdr.Payload) {
			return
		}
		Pipe(ctx, s, ws, responseHeader, nil)
	}
	Pipe(ctx, s, ws, responseHeader, retry)
}

func writeInitialPayload(s *Session, remote io.Writer, payload []byte) bool {
	if len(payload) == 0 {
		return true
	}
	if _, err := remote.Write(payload); err != nil {
		slog.Warn("writing initial payload failed", "session", s.LogPrefix, "kind", KindTransportError, "err", err)
		return false
	}
	return true
}

// serveDNS implements the DNS-over-HTTPS Adapter: split length-prefixed
// queries out of every chunk (starting with the header's own payload),
// issue them serially against dohAdapter, and frame each reply with its
// own 16-bit length, gluing the one-shot response header to the first
// reply only.
func serveDNS(ctx context.Context, s *Session, ws *wsconn.Conn, source *chunkSource, hdr *vless.RequestHeader, dohAdapter *doh.Adapter) {
	responseHeader := buildResponseHeader(hdr.Version)
	var splitter doh.Splitter

	process := func(chunk []byte) bool {
		for _, query := range splitter.Feed(chunk) {
			resp, err := dohAdapter.Query(ctx, query)
			if err != nil {
				slog.Warn("doh query failed", "session", s.LogPrefix, "kind", KindDoHQueryError, "err", err)
				continue
			}
			frame := frameDNSReply(resp)
			if s.MarkHeaderSent() {
				withHeader := make([]byte, 0, len(responseHeader)+len(frame))
				withHeader = append(withHeader, responseHeader...)
				withHeader = append(withHeader, frame...)
				frame = withHeader
			}
			if err := ws.WriteChunk(frame); err != nil {
				slog.Warn("writing dns reply failed", "session", s.LogPrefix, "kind", KindTransportError, "err", err)
				return false
			}
		}
		return true
	}

	if !process(hdr.Payload) {
		return
	}
	for {
		chunk, err := source.Next()
		if err != nil {
			return
		}
		if !process(chunk) {
			return
		}
	}
}

// frameDNSReply prefixes body with its 16-bit big-endian length, per the
// UDP/DNS carrier format.
func frameDNSReply(body []byte) []byte {
	frame := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(frame, uint16(len(body)))
	copy(frame[2:], body)
	return frame
}
