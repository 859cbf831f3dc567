package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/vdiff/pkg/middleware"
	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/snapshot"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Resume results, as reported by Recover and counted by metrics.
const (
	ResumeNone   = "none"   // client was already up to date
	ResumeReplay = "replay" // missed frames were replayed from history
	ResumeResync = "resync" // the whole tree was rebuilt
	ResumeFailed = "failed" // the session could not be resumed
)

// Session is the server end of one client's live tree. It keeps the tree of
// the last Render with its hydration IDs, numbers every patches frame and
// keeps recent frames for replay. A session outlives its connections: a
// client that reconnects with the session ID picks up where it left off.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// mu guards the tree, the sequence counter and writes to conn.
	mu   sync.Mutex
	tree *vdom.VNode
	gen  *vdom.HIDGenerator
	seq  uint64 // last assigned sequence number
	conn *websocket.Conn

	history    *PatchHistory
	ackSeq     atomic.Uint64
	lastActive atomic.Int64
	closed     atomic.Bool

	// Last stored snapshot hash, guarded by mu.
	snapshot string

	config    *ServerConfig
	logger    *slog.Logger
	metrics   *middleware.Metrics
	tracer    *middleware.Tracer
	snapshots snapshot.Store
}

// RenderResult describes one render pass.
type RenderResult struct {
	FirstSeq uint64     // sequence number of the first frame sent
	LastSeq  uint64     // sequence number of the final frame
	Patches  int        // patches produced
	Frames   int        // frames they were split into
	Stats    vdom.Stats // primitives issued by the pass
	Snapshot string     // snapshot hash, when a store is configured
}

func newSession(id string, config *ServerConfig, deps sessionDeps) *Session {
	s := &Session{
		ID:        id,
		gen:       vdom.NewHIDGenerator(),
		history:   NewPatchHistory(config.HistorySize),
		config:    config,
		logger:    deps.logger.With("session_id", id),
		metrics:   deps.metrics,
		tracer:    deps.tracer,
		snapshots: deps.snapshots,
	}
	s.touch()
	return s
}

// sessionDeps are the collaborators a SessionManager hands to every session.
type sessionDeps struct {
	logger    *slog.Logger
	metrics   *middleware.Metrics
	tracer    *middleware.Tracer
	snapshots snapshot.Store
}

// Render reconciles next against the tree of the previous Render and sends
// the resulting patches to the attached connection as one or more sequenced
// frames, the last flagged final. Frames are kept in the history even when
// no connection is attached so that a resuming client can catch up.
//
// A failed pass leaves the session tree unusable; the error wraps
// ErrReconcile and the caller should drop the session.
func (s *Session) Render(ctx context.Context, next *vdom.VNode) (*RenderResult, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	_, span := s.tracer.Start(ctx, "vdiff.render", attribute.String("vdiff.session_id", s.ID))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	rec := vdom.NewRecorder(s.gen)
	counter := vdom.NewCounter(s.metrics.Wrap(rec))

	start := time.Now()
	err := vdom.New(counter).Patch(vdom.RootHID, s.tree, next)
	s.metrics.ObservePass(time.Since(start), err)
	if err != nil {
		span.End(err, counter.Stats)
		return nil, NewSessionError(s.ID, "render", fmt.Errorf("%w: %w", ErrReconcile, err))
	}
	s.tree = next

	wire := protocol.FromVDOM(rec.Patches())
	chunks, err := protocol.ChunkPatches(wire, s.config.MaxFramePayload)
	if err != nil {
		span.End(err, counter.Stats)
		return nil, NewSessionError(s.ID, "render", fmt.Errorf("%w: %w", ErrReconcile, err))
	}

	res := &RenderResult{
		FirstSeq: s.seq + 1,
		Patches:  len(wire),
		Frames:   len(chunks),
		Stats:    counter.Stats,
	}
	for i, chunk := range chunks {
		s.seq++
		flags := protocol.FlagSequenced
		if i == len(chunks)-1 {
			flags |= protocol.FlagFinal
		}
		payload := protocol.EncodePatches(&protocol.PatchesFrame{Seq: s.seq, Patches: chunk})
		data := protocol.NewFrameWithFlags(protocol.FramePatches, flags, payload).Encode()
		s.history.Add(s.seq, data)
		s.writeLocked(protocol.FramePatches, data)
	}
	res.LastSeq = s.seq
	s.metrics.RecordPatches(len(wire))

	if s.snapshots != nil {
		hash, err := snapshot.Save(ctx, s.snapshots, snapshot.New(s.ID, s.seq, next))
		if err != nil {
			s.logger.Warn("snapshot failed", "seq", s.seq, "error", err)
		} else {
			s.snapshot = hash
			res.Snapshot = hash
		}
	}

	span.SetAttributes(
		attribute.Int64("vdiff.seq", int64(res.LastSeq)),
		attribute.Int("vdiff.frames", res.Frames),
	)
	span.End(nil, counter.Stats)
	s.logger.Debug("render",
		"seq", res.LastSeq,
		"patches", res.Patches,
		"frames", res.Frames,
		"stats", res.Stats.String())
	return res, nil
}

// Ack records that the client applied every frame up to lastSeq and drops
// those frames from the history.
func (s *Session) Ack(lastSeq uint64) {
	for {
		cur := s.ackSeq.Load()
		if lastSeq <= cur || s.ackSeq.CompareAndSwap(cur, lastSeq) {
			break
		}
	}
	s.history.GarbageCollect(lastSeq)
	s.touch()
}

// Recover brings a client that applied every frame up to lastSeq back in
// step. Missed frames are replayed from history when all of them are still
// there; otherwise the client gets a full resync that rebuilds its tree
// from the current one. It returns one of the Resume* results.
func (s *Session) Recover(lastSeq uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoverLocked(lastSeq)
}

// Resync answers a client's resync request. It recovers like Recover and,
// unless a full resync was sent, ends with an empty final ResyncPatches
// frame so the client knows the replay is over.
func (s *Session) Resync(lastSeq uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.recoverLocked(lastSeq)
	if err != nil || result == ResumeResync {
		return result, err
	}
	ct, rr := protocol.NewResyncPatches(s.seq, nil)
	data := protocol.NewFrameWithFlags(protocol.FrameControl, protocol.FlagResync|protocol.FlagFinal, protocol.EncodeControl(ct, rr)).Encode()
	return result, s.writeLocked(protocol.FrameControl, data)
}

func (s *Session) recoverLocked(lastSeq uint64) (string, error) {
	s.touch()
	if lastSeq == s.seq {
		return ResumeNone, nil
	}
	if lastSeq < s.seq {
		if frames := s.history.GetFrames(lastSeq, s.seq); frames != nil {
			for _, data := range frames {
				if err := s.writeLocked(protocol.FramePatches, data); err != nil {
					return ResumeFailed, err
				}
			}
			s.logger.Info("replayed patches", "from", lastSeq+1, "to", s.seq)
			return ResumeReplay, nil
		}
	}
	if err := s.resyncFullLocked(); err != nil {
		return ResumeFailed, err
	}
	s.logger.Info("full resync", "client_seq", lastSeq, "seq", s.seq)
	return ResumeResync, nil
}

// resyncFullLocked sends the current tree as rebuilding patches in one or
// more ResyncFull control frames, the last flagged final. Callers hold mu.
func (s *Session) resyncFullLocked() error {
	patches, err := vdom.Rebuild(s.tree)
	if err != nil {
		return NewSessionError(s.ID, "resync", err)
	}
	// One byte for the control type.
	chunks, err := protocol.ChunkPatches(protocol.FromVDOM(patches), s.config.MaxFramePayload-1)
	if err != nil {
		return NewSessionError(s.ID, "resync", err)
	}
	for i, chunk := range chunks {
		flags := protocol.FlagResync
		if i == len(chunks)-1 {
			flags |= protocol.FlagFinal
		}
		ct, rr := protocol.NewResyncFull(s.seq, chunk)
		data := protocol.NewFrameWithFlags(protocol.FrameControl, flags, protocol.EncodeControl(ct, rr)).Encode()
		if err := s.writeLocked(protocol.FrameControl, data); err != nil {
			return err
		}
	}
	return nil
}

// Attach binds conn to the session, closing any previous connection.
func (s *Session) Attach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old := s.conn; old != nil && old != conn {
		old.Close()
	}
	s.conn = conn
	s.touch()
}

// Detach unbinds conn if it is still the attached connection. The session
// stays resumable.
func (s *Session) Detach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		s.conn = nil
	}
}

// Send writes a frame to the attached connection.
func (s *Session) Send(f *protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(f.Type, f.Encode())
}

// SendError sends an error message to the client.
func (s *Session) SendError(code protocol.ErrorCode, message string, fatal bool) error {
	em := protocol.NewError(code, message)
	if fatal {
		em = protocol.NewFatalError(code, message)
	}
	return s.Send(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)))
}

func (s *Session) sendControl(ct protocol.ControlType, payload any) error {
	return s.Send(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, payload)))
}

// writeLocked writes one encoded frame. A failed write detaches the
// connection; the frame stays in the history for replay. Callers hold mu.
func (s *Session) writeLocked(ft protocol.FrameType, data []byte) error {
	if s.conn == nil {
		return ErrNoConnection
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Warn("write error", "error", err)
		s.metrics.RecordWebSocketError("write")
		s.conn.Close()
		s.conn = nil
		return NewSessionError(s.ID, "write", err)
	}
	s.metrics.RecordFrame(ft)
	return nil
}

// Close sends a close message to the attached connection, if any, and marks
// the session closed. It reports whether this call closed the session.
func (s *Session) Close(reason protocol.CloseReason, message string) bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		ct, cm := protocol.NewClose(reason, message)
		s.writeLocked(protocol.FrameControl, protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, cm)).Encode())
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
	}
	s.history.Clear()
	s.logger.Info("session closed", "reason", reason.String())
	return true
}

// IsClosed reports whether the session has been closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Seq returns the sequence number of the last frame produced.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// AckSeq returns the highest sequence number the client acknowledged.
func (s *Session) AckSeq() uint64 {
	return s.ackSeq.Load()
}

// Tree returns the tree of the last Render. It must not be modified.
func (s *Session) Tree() *vdom.VNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Snapshot returns the hash of the last stored snapshot, or "".
func (s *Session) Snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// History returns the session's replay buffer.
func (s *Session) History() *PatchHistory {
	return s.history
}

// LastActive returns when the session last saw activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}
