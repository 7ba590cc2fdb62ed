// Copyright 2023 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package socks5 implements a SOCKS5 (RFC 1928) CONNECT client used as the
// gateway's upstream-proxy outbound transport, for retry dials and, in
// relay-all mode, for every primary dial.
package socks5

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/vlessgate/gateway/transport"
)

// Credentials holds a username/password pair for RFC 1929 auth. A nil
// *Credentials means the dialer only offers the no-auth method.
type Credentials struct {
	Username string
	Password string
}

// StreamDialer is a [transport.StreamDialer] that relays through a SOCKS5
// proxy using the CONNECT command.
type StreamDialer struct {
	// ProxyAddress is the SOCKS5 proxy's host:port.
	ProxyAddress string
	// Credentials, if non-nil, is offered to the proxy as method 0x02. If
	// nil, only the no-auth method (0x00) is offered.
	Credentials *Credentials
	// Dialer is used to establish the TCP connection to the proxy. The
	// zero value dials directly.
	Dialer net.Dialer
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// Dial connects to raddr through the configured SOCKS5 proxy.
func (d *StreamDialer) Dial(ctx context.Context, raddr string) (transport.StreamConn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", d.ProxyAddress)
	if err != nil {
		return nil, fmt.Errorf("socks5: could not connect to proxy %s: %w", d.ProxyAddress, err)
	}
	tcpConn, ok := conn.(transport.StreamConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("socks5: proxy connection does not support half-close")
	}

	if err := d.greet(tcpConn); err != nil {
		tcpConn.Close()
		return nil, err
	}
	if err := d.connect(tcpConn, raddr); err != nil {
		tcpConn.Close()
		return nil, err
	}
	return tcpConn, nil
}

// greet performs the RFC 1928 method negotiation and, if the proxy selects
// user/pass, the RFC 1929 auth sub-negotiation.
func (d *StreamDialer) greet(conn net.Conn) error {
	methods := []byte{authMethodNoAuth}
	if d.Credentials != nil {
		methods = append(methods, authMethodUserPass)
	}

	req := make([]byte, 0, 2+len(methods))
	req = append(req, 0x05, byte(len(methods)))
	req = append(req, methods...)
	if _, err := conn.Write(req); err != nil {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("write greeting: %v", err)}
	}

	var sel [2]byte
	if _, err := io.ReadFull(conn, sel[:]); err != nil {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("read method selection: %v", err)}
	}
	if sel[0] != 0x05 {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("proxy replied with version 0x%02x", sel[0])}
	}

	switch sel[1] {
	case authMethodNoAuth:
		return nil
	case authMethodUserPass:
		if d.Credentials == nil {
			return &Error{Kind: KindAuthRequired, Detail: "proxy selected username/password but no credentials are configured"}
		}
		return d.authenticate(conn)
	case authMethodNoneAcceptable:
		return &Error{Kind: KindNoAcceptableMethods, Detail: "proxy rejected every offered authentication method"}
	default:
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("proxy selected unsupported method 0x%02x", sel[1])}
	}
}

// authenticate performs RFC 1929 username/password authentication.
func (d *StreamDialer) authenticate(conn net.Conn) error {
	user, pass := d.Credentials.Username, d.Credentials.Password
	if len(user) > 255 || len(pass) > 255 {
		return &Error{Kind: KindAuthRejected, Detail: "username or password exceeds 255 bytes"}
	}

	req := make([]byte, 0, 3+len(user)+len(pass))
	req = append(req, 0x01, byte(len(user)))
	req = append(req, user...)
	req = append(req, byte(len(pass)))
	req = append(req, pass...)
	if _, err := conn.Write(req); err != nil {
		return &Error{Kind: KindAuthRejected, Detail: fmt.Sprintf("write auth request: %v", err)}
	}

	var reply [2]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return &Error{Kind: KindAuthRejected, Detail: fmt.Sprintf("read auth reply: %v", err)}
	}
	if reply[0] != 0x01 {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("auth reply version 0x%02x", reply[0])}
	}
	if reply[1] != 0x00 {
		return &Error{Kind: KindAuthRejected, Detail: "proxy rejected the supplied credentials"}
	}
	return nil
}

// connect issues the CONNECT request for raddr and consumes the reply.
func (d *StreamDialer) connect(conn net.Conn, raddr string) error {
	req := []byte{0x05, CmdConnect, 0x00}
	req, err := appendSOCKS5Address(req, raddr)
	if err != nil {
		return fmt.Errorf("socks5: invalid destination address %q: %w", raddr, err)
	}
	if _, err := conn.Write(req); err != nil {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("write connect request: %v", err)}
	}

	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("read connect reply: %v", err)}
	}
	if hdr[0] != 0x05 {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("connect reply version 0x%02x", hdr[0])}
	}
	rep := ReplyCode(hdr[1])
	if rep != ReplySucceeded {
		// The bound address is still on the wire; drain it on a best-effort
		// basis so the connection could in principle be reused, then report
		// the failure.
		discardBoundAddr(conn, hdr[3])
		return &Error{Kind: KindConnectFailed, Reply: rep}
	}
	if err := discardBoundAddr(conn, hdr[3]); err != nil {
		return &Error{Kind: KindVersionMismatch, Detail: fmt.Sprintf("read bound address: %v", err)}
	}
	return nil
}
