// Copyright 2019 Jigsaw Operations LLC
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

package socks5

import "fmt"

// Kind distinguishes the ways a SOCKS5 CONNECT handshake can fail, so a
// caller can tell a rejected destination from a broken proxy.
type Kind string

const (
	// KindVersionMismatch means the proxy replied with a SOCKS version
	// other than 5 (or an auth sub-negotiation version other than 1),
	// selected a method that was not offered, or the greeting or CONNECT
	// exchange could not be written or read.
	KindVersionMismatch Kind = "version_mismatch"
	// KindNoAcceptableMethods means the proxy selected 0xFF, rejecting
	// every authentication method offered.
	KindNoAcceptableMethods Kind = "no_acceptable_methods"
	// KindAuthRequired means the proxy selected username/password auth
	// but the dialer was not configured with credentials.
	KindAuthRequired Kind = "auth_required"
	// KindAuthRejected means username/password auth was attempted and
	// the proxy reported failure, the auth exchange could not be written or
	// read, or the username or password exceeds 255 bytes.
	KindAuthRejected Kind = "auth_rejected"
	// KindConnectFailed means the CONNECT request reached the proxy but
	// it replied with a non-zero reply code.
	KindConnectFailed Kind = "connect_failed"
)

// Error is the error type returned for SOCKS5 handshake and CONNECT
// failures. Reply, if non-zero, is the raw REP byte from a CONNECT reply.
type Error struct {
	Kind   Kind
	Reply  ReplyCode
	Detail string
}

func (e *Error) Error() string {
	if e.Kind == KindConnectFailed {
		return fmt.Sprintf("socks5: %s: %s", e.Kind, e.Reply.Error())
	}
	return fmt.Sprintf("socks5: %s: %s", e.Kind, e.Detail)
}
