// Package gateway implements the VLESS-over-WebSocket ingress state
// machine, outbound dispatcher, and duplex pipe: the parts of the gateway
// that drive a single accepted connection from upgrade through close.
package gateway

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vlessgate/gateway/internal/vless"
	"github.com/vlessgate/gateway/transport"
)

// Mode is the outbound mode a Session settled on after parsing its
// request header.
type Mode int

const (
	ModeTCP Mode = iota
	ModeDNS
)

// Session is the per-connection state described in the data model: one
// per accepted WebSocket, holding at most one remote stream at a time: the
// primary stream, replaced at most once by the retry stream.
type Session struct {
	ID   string
	User uuid.UUID
	Mode Mode

	RemoteAddr string
	RemotePort uint16

	LogPrefix string

	mu         sync.Mutex
	remote     transport.StreamConn
	bindCount  int
	headerSent bool
	retried    bool
}

// NewSession creates a Session for an authenticated request header,
// assigning it a fresh opaque session id for logging only.
func NewSession(hdr *vless.RequestHeader) *Session {
	mode := ModeTCP
	if hdr.Command == vless.CommandUDP {
		mode = ModeDNS
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		User:       hdr.User,
		Mode:       mode,
		RemoteAddr: hdr.Address,
		RemotePort: hdr.Port,
		LogPrefix:  fmt.Sprintf("[%s:%d-%s %s]", hdr.Address, hdr.Port, id, hdr.Command),
	}
}

// BindRemote installs conn as the session's exclusive remote stream. The
// primary dial binds once; the retry path, which TakeRetry limits to at
// most one call, may bind a second, replacement stream once the first has
// been torn down. Two streams are never open concurrently because the
// retry is only invoked after the primary's read side has drained. A
// third bind attempt is an invariant violation, not a recoverable state,
// so it panics rather than silently overwriting an active stream.
func (s *Session) BindRemote(conn transport.StreamConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindCount >= 2 {
		panic("gateway: session remote stream bound more than twice")
	}
	s.remote = conn
	s.bindCount++
}

// Remote returns the bound remote stream. It panics if called before any
// bind: callers on this path (the duplex pipe) only ever run after the
// dispatcher has successfully bound a stream, so a nil remote here means a
// caller invariant was violated, not a recoverable runtime condition.
func (s *Session) Remote() transport.StreamConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		panic("gateway: Remote() called before a stream was bound")
	}
	return s.remote
}

// MarkHeaderSent records that the one-shot VLESS response header has been
// emitted, returning true the first time it is called and false on every
// subsequent call so the caller can tell whether it must still prepend the
// header to its next outbound chunk.
func (s *Session) MarkHeaderSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headerSent {
		return false
	}
	s.headerSent = true
	return true
}

// TakeRetry returns true the first time it is called and false afterwards,
// enforcing that the retry path is attempted at most once per session.
func (s *Session) TakeRetry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retried {
		return false
	}
	s.retried = true
	return true
}
