package doh

import "fmt"

// Kind distinguishes why a single DoH query failed. Per spec, any Error
// from Query is non-fatal to the session: the caller logs and skips it.
type Kind string

const (
	// KindHTTPFailed means the POST itself failed, or the resolver
	// responded with a non-200 status.
	KindHTTPFailed Kind = "http_failed"
	// KindMalformedResponse means the HTTP exchange succeeded but the
	// response body did not unpack as a well-formed DNS message.
	KindMalformedResponse Kind = "malformed_response"
)

// Error is returned by Query for a single failed lookup.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("doh: %s: %s", e.Kind, e.Detail)
}
