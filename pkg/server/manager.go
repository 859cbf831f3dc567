package server

import (
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/snapshot"
)

// SessionManager owns the live sessions. It is bounded: creating a session
// beyond the limit evicts the least recently used one, closing it.
type SessionManager struct {
	cache   *lru.Cache
	config  *ServerConfig
	deps    sessionDeps
	logger  *slog.Logger
	metrics *middleware.Metrics
}

// NewSessionManager creates a SessionManager holding at most
// config.MaxSessions sessions.
func NewSessionManager(config *ServerConfig, logger *slog.Logger, metrics *middleware.Metrics, tracer *middleware.Tracer, snapshots snapshot.Store) (*SessionManager, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	m := &SessionManager{
		config:  config,
		logger:  logger,
		metrics: metrics,
		deps: sessionDeps{
			logger:    logger,
			metrics:   metrics,
			tracer:    tracer,
			snapshots: snapshots,
		},
	}
	cache, err := lru.NewWithEvict(config.MaxSessions, m.onEvict)
	if err != nil {
		return nil, err
	}
	m.cache = cache
	return m, nil
}

// onEvict runs for every entry leaving the cache. Sessions already closed
// by Remove or Shutdown are not counted as evictions.
func (m *SessionManager) onEvict(key, value any) {
	s, ok := value.(*Session)
	if !ok {
		return
	}
	if s.Close(protocol.CloseSessionExpired, "session evicted") {
		m.metrics.RecordEviction()
		m.logger.Info("session evicted", "session_id", key)
	}
}

// Create starts a new session with a fresh ID.
func (m *SessionManager) Create() *Session {
	s := newSession(uuid.NewString(), m.config, m.deps)
	m.cache.Add(s.ID, s)
	m.logger.Debug("session created", "session_id", s.ID)
	return s
}

// Get returns the open session with the given ID and marks it recently used.
func (m *SessionManager) Get(id string) (*Session, bool) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	if s.IsClosed() {
		return nil, false
	}
	return s, true
}

// Remove closes and forgets a session.
func (m *SessionManager) Remove(id string, reason protocol.CloseReason, message string) {
	if v, ok := m.cache.Peek(id); ok {
		v.(*Session).Close(reason, message)
		m.cache.Remove(id)
	}
}

// Len returns the number of sessions held.
func (m *SessionManager) Len() int {
	return m.cache.Len()
}

// Shutdown closes every session.
func (m *SessionManager) Shutdown() {
	for _, key := range m.cache.Keys() {
		if v, ok := m.cache.Peek(key); ok {
			v.(*Session).Close(protocol.CloseServerShutdown, "server shutting down")
		}
	}
	m.cache.Purge()
}
