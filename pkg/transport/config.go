// Package transport owns the per-session WebSocket to the interview backend.
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config configures a session socket.
type Config struct {
	// Host is the backend host[:port].
	Host string `yaml:"host" json:"host"`

	// Secure selects wss:// over ws://.
	Secure bool `yaml:"secure" json:"secure"`

	// MaxReconnects bounds reconnect attempts for the whole session.
	MaxReconnects int `yaml:"max_reconnects" json:"max_reconnects"`

	// ReconnectBaseDelay is the first backoff; attempt n waits base * 2^n.
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" json:"reconnect_base_delay"`

	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" json:"keepalive_interval"`
}

// DefaultConfig returns the default socket configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "localhost:8000",
		MaxReconnects:      3,
		ReconnectBaseDelay: 500 * time.Millisecond,
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       5 * time.Second,
		KeepaliveInterval:  20 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("max_reconnects must be >= 0, got %d", c.MaxReconnects)
	}
	if c.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("reconnect_base_delay must be positive, got %v", c.ReconnectBaseDelay)
	}
	return nil
}

// URL returns ws(s)://<host>/interview_call/ws/{sessionId}.
func URL(host, sessionID string, secure bool) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/interview_call/ws/%s", scheme, host, url.PathEscape(sessionID))
}

// backoff returns the delay before reconnect attempt n (0-based).
func backoff(base time.Duration, n int) time.Duration {
	return base << uint(n)
}
