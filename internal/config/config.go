// Package config loads the gateway's immutable UpstreamConfig from
// environment variables: explicit parsing with a plain error return,
// rather than a generic env-struct library, since this is six scalar/set
// values, not a layered config surface.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/vlessgate/gateway/internal/vless"
)

// SOCKS5 holds the optional upstream SOCKS5 proxy endpoint and optional
// credentials, parsed from a single "[user:pass@]host:port" value.
type SOCKS5 struct {
	Address  string
	Username string
	Password string
}

// UpstreamConfig is the immutable, process-wide configuration threaded
// into every session.
type UpstreamConfig struct {
	AcceptedUsers  vless.UserSet
	Fallback       string
	SOCKS5         *SOCKS5
	SOCKS5RelayAll bool
	DoHURL         string
	ListenAddr     string
}

const (
	envUserIDs        = "VLESS_USER_IDS"
	envFallback       = "VLESS_FALLBACK"
	envSOCKS5         = "VLESS_SOCKS5"
	envSOCKS5RelayAll = "VLESS_SOCKS5_RELAY_ALL"
	envDoHURL         = "VLESS_DOH_URL"
	envListenAddr     = "VLESS_LISTEN_ADDR"
)

// Load reads UpstreamConfig from the process environment.
func Load() (*UpstreamConfig, error) {
	userIDs := os.Getenv(envUserIDs)
	if strings.TrimSpace(userIDs) == "" {
		return nil, fmt.Errorf("config: %s must name at least one accepted user uuid", envUserIDs)
	}
	accepted, err := vless.ParseUserSet(userIDs)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", envUserIDs, err)
	}

	cfg := &UpstreamConfig{
		AcceptedUsers: accepted,
		Fallback:      os.Getenv(envFallback),
		DoHURL:        os.Getenv(envDoHURL),
		ListenAddr:    os.Getenv(envListenAddr),
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8443"
	}
	cfg.SOCKS5RelayAll = os.Getenv(envSOCKS5RelayAll) == "true"

	if raw := os.Getenv(envSOCKS5); raw != "" {
		s, err := parseSOCKS5(raw)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", envSOCKS5, err)
		}
		cfg.SOCKS5 = s
	}
	if cfg.SOCKS5RelayAll && cfg.SOCKS5 == nil {
		return nil, fmt.Errorf("config: %s requires %s to be set", envSOCKS5RelayAll, envSOCKS5)
	}

	return cfg, nil
}

// parseSOCKS5 parses "[user:pass@]host:port" into a SOCKS5 endpoint.
func parseSOCKS5(raw string) (*SOCKS5, error) {
	s := &SOCKS5{}
	hostPart := raw
	if at := strings.LastIndex(raw, "@"); at >= 0 {
		userinfo := raw[:at]
		hostPart = raw[at+1:]
		user, pass, _ := strings.Cut(userinfo, ":")
		s.Username = user
		s.Password = pass
	}
	host, port, err := net.SplitHostPort(hostPart)
	if err != nil {
		return nil, fmt.Errorf("invalid host:port %q: %w", hostPart, err)
	}
	s.Address = net.JoinHostPort(host, port)
	return s, nil
}
