// Package doh implements the UDP-over-VLESS to DNS-over-HTTPS adapter: it
// splits length-prefixed DNS packets out of the client's byte stream and
// relays each one as a raw RFC 8484 POST. Unlike a resolving DoH client,
// the query bytes here are opaque and client-built, so there is no
// question to construct or match against the reply.
package doh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/dns/dnsmessage"
)

const mimeType = "application/dns-message"

// Adapter issues DNS-over-HTTPS queries against a single, fixed resolver
// URL.
type Adapter struct {
	URL    string
	Client *http.Client
}

// NewAdapter returns an Adapter whose HTTP client uses a 10s TLS handshake
// timeout and a 20s response-header timeout.
func NewAdapter(url string) *Adapter {
	return &Adapter{
		URL: url,
		Client: &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2:     true,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 20 * time.Second,
			},
		},
	}
}

// Query POSTs queryBytes as the raw DNS wire message and returns the
// resolver's raw reply bytes. The reply is validated with
// dnsmessage.Message.Unpack before being returned; a malformed body yields
// a KindMalformedResponse error instead of the bytes, so the caller logs
// and skips the query rather than relaying a broken reply.
func (a *Adapter) Query(ctx context.Context, queryBytes []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(queryBytes))
	if err != nil {
		return nil, &Error{Kind: KindHTTPFailed, Detail: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", mimeType)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindHTTPFailed, Detail: fmt.Sprintf("do request: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindHTTPFailed, Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindHTTPFailed, Detail: fmt.Sprintf("read response: %v", err)}
	}

	var msg dnsmessage.Message
	if err := msg.Unpack(body); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Detail: fmt.Sprintf("unpack response: %v", err)}
	}
	return body, nil
}
