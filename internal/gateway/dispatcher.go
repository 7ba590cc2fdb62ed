package gateway

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/vlessgate/gateway/internal/config"
	"github.com/vlessgate/gateway/transport"
	"github.com/vlessgate/gateway/transport/socks5"
)

// dialTimeout bounds every outbound dial attempt, primary and retry.
const dialTimeout = 8 * time.Second

// Dispatcher opens outbound TCP streams for a session, directly, through
// a configured fallback, or through an upstream SOCKS5 proxy, and drives
// the single-retry dial policy.
type Dispatcher struct {
	cfg *config.UpstreamConfig
}

// NewDispatcher returns a Dispatcher bound to cfg.
func NewDispatcher(cfg *config.UpstreamConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// socksDialer builds a transport.StreamDialer for the configured upstream
// SOCKS5 proxy, or nil if none is configured.
func (d *Dispatcher) socksDialer() transport.StreamDialer {
	if d.cfg.SOCKS5 == nil {
		return nil
	}
	sd := &socks5.StreamDialer{ProxyAddress: d.cfg.SOCKS5.Address}
	if d.cfg.SOCKS5.Username != "" {
		sd.Credentials = &socks5.Credentials{Username: d.cfg.SOCKS5.Username, Password: d.cfg.SOCKS5.Password}
	}
	return sd
}

// DialPrimary opens the initial outbound stream to the session's
// destination, via SOCKS5 if socks5-relay-all is configured, direct
// otherwise.
func (d *Dispatcher) DialPrimary(ctx context.Context, s *Session) (transport.StreamConn, error) {
	raddr := net.JoinHostPort(s.RemoteAddr, fmt.Sprintf("%d", s.RemotePort))
	dialer := d.primaryDialer()

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, err := dialer.Dial(ctx, raddr)
	if err != nil {
		return nil, fmt.Errorf("gateway: primary dial to %s failed: %w", raddr, err)
	}
	return conn, nil
}

func (d *Dispatcher) primaryDialer() transport.StreamDialer {
	if d.cfg.SOCKS5RelayAll {
		if sd := d.socksDialer(); sd != nil {
			return sd
		}
	}
	return &transport.TCPStreamDialer{}
}

// DialRetry opens the single, one-shot replacement stream: through SOCKS5
// if a proxy is configured, else to the configured fallback host:port,
// falling back to the session's original destination if no fallback is
// configured. The fallback address is used exactly as configured rather
// than having the session's original port spliced in.
func (d *Dispatcher) DialRetry(ctx context.Context, s *Session) (transport.StreamConn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if sd := d.socksDialer(); sd != nil {
		raddr := net.JoinHostPort(s.RemoteAddr, fmt.Sprintf("%d", s.RemotePort))
		conn, err := sd.Dial(ctx, raddr)
		if err != nil {
			return nil, fmt.Errorf("gateway: retry dial via socks5 to %s failed: %w", raddr, err)
		}
		return conn, nil
	}

	raddr := d.cfg.Fallback
	if raddr == "" {
		raddr = net.JoinHostPort(s.RemoteAddr, fmt.Sprintf("%d", s.RemotePort))
	}
	conn, err := (&transport.TCPStreamDialer{}).Dial(ctx, raddr)
	if err != nil {
		return nil, fmt.Errorf("gateway: retry dial to %s failed: %w", raddr, err)
	}
	return conn, nil
}
