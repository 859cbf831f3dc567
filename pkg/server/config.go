package server

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/vango-dev/vdiff/pkg/protocol"
)

// ServerConfig holds configuration for the HTTP server and its sessions.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080").
	Address string

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of WebSocket upgrades.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// ReadTimeout is the maximum time to wait for a client frame. Clients
	// answer pings, so it must be longer than PingInterval.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout is the maximum time for the initial handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// PingInterval is the time between server pings.
	// Default: 30 seconds.
	PingInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// MaxSessions bounds the number of live sessions. Creating one more
	// evicts the least recently used session.
	// Default: 1024.
	MaxSessions int

	// HistorySize is the number of patch frames kept per session for
	// replay on resume.
	// Default: 64.
	HistorySize int

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 1MB.
	MaxMessageSize int64

	// MaxFramePayload bounds the payload of each patches frame. Larger
	// batches are split across several frames.
	// Default: protocol.MaxPayloadSize.
	MaxFramePayload int

	// MetricsPath is where metrics are served when a Metrics is set.
	// Default: "/metrics".
	MetricsPath string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:          ":8080",
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      SameOriginCheck,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		MaxSessions:      1024,
		HistorySize:      64,
		MaxMessageSize:   1 << 20,
		MaxFramePayload:  protocol.MaxPayloadSize,
		MetricsPath:      "/metrics",
	}
}

// withDefaults returns a copy of c with every unset field filled in.
func (c *ServerConfig) withDefaults() *ServerConfig {
	d := DefaultServerConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize <= 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.PingInterval <= 0 {
		out.PingInterval = d.PingInterval
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.MaxSessions <= 0 {
		out.MaxSessions = d.MaxSessions
	}
	if out.HistorySize <= 0 {
		out.HistorySize = d.HistorySize
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.MaxFramePayload <= 0 || out.MaxFramePayload > protocol.MaxPayloadSize {
		out.MaxFramePayload = d.MaxFramePayload
	}
	if out.MetricsPath == "" {
		out.MetricsPath = d.MetricsPath
	}
	return &out
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
// Requests without an Origin header (non-browser clients) are accepted.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}

	return originURL.Host == host
}

// AllowOrigins returns an origin check that accepts same-origin requests
// and the listed origins. "*" accepts everything.
func AllowOrigins(origins ...string) func(*http.Request) bool {
	if slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		if SameOriginCheck(r) {
			return true
		}
		return slices.Contains(origins, r.Header.Get("Origin"))
	}
}
