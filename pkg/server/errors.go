package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for common session and server error conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrInvalidHandshake is returned when the WebSocket handshake fails.
	ErrInvalidHandshake = errors.New("server: invalid handshake")

	// ErrNoConnection is returned when a session has no attached connection.
	ErrNoConnection = errors.New("server: no connection")

	// ErrReconcile is wrapped by every failed render pass. The session tree
	// is no longer trustworthy afterwards and the session is dropped.
	ErrReconcile = errors.New("server: reconcile failed")
)

// SessionError wraps an error with session context for debugging.
type SessionError struct {
	SessionID string
	Op        string // Operation that failed
	Err       error  // Underlying error
}

// Error returns the error message with session context.
func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError.
func NewSessionError(sessionID, op string, err error) *SessionError {
	return &SessionError{
		SessionID: sessionID,
		Op:        op,
		Err:       err,
	}
}
