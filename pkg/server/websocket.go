package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vdiff/pkg/protocol"
)

// HandleWebSocket upgrades the request and runs one client connection:
// the handshake, recovery of a resumed session, then the frame loop.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		s.metrics.RecordWebSocketError("upgrade")
		return
	}

	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))

	hello, err := s.readClientHello(conn)
	if err != nil {
		s.logger.Warn("handshake failed", "error", err)
		s.sendHandshakeError(conn, protocol.HandshakeInvalidFormat)
		conn.Close()
		return
	}
	if !hello.Version.Compatible() {
		s.logger.Warn("protocol version mismatch",
			"major", hello.Version.Major,
			"minor", hello.Version.Minor)
		s.sendHandshakeError(conn, protocol.HandshakeVersionMismatch)
		conn.Close()
		return
	}

	var session *Session
	resumed := hello.SessionID != ""
	if resumed {
		var ok bool
		session, ok = s.sessions.Get(hello.SessionID)
		if !ok {
			s.logger.Info("session resume rejected: unknown session", "session_id", hello.SessionID)
			s.metrics.RecordResume(ResumeFailed)
			s.sendHandshakeError(conn, protocol.HandshakeSessionExpired)
			conn.Close()
			return
		}
	} else {
		session = s.sessions.Create()
	}

	s.sendServerHello(conn, session)
	session.Attach(conn)

	if resumed {
		result, err := session.Recover(hello.LastSeq)
		s.metrics.RecordResume(result)
		if err != nil {
			s.logger.Warn("session recovery failed", "session_id", session.ID, "error", err)
			session.Detach(conn)
			conn.Close()
			return
		}
		s.logger.Info("session resumed", "session_id", session.ID, "result", result)
	}

	s.metrics.RecordSessionOpen()
	defer s.metrics.RecordSessionClose()

	done := make(chan struct{})
	go s.pingLoop(session, done)
	s.readLoop(r.Context(), session, conn)
	close(done)

	session.Detach(conn)
	conn.Close()
}

// readClientHello reads and decodes the handshake frame.
func (s *Server) readClientHello(conn *websocket.Conn) (*protocol.ClientHello, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		return nil, err
	}
	if frame.Type != protocol.FrameHandshake {
		return nil, ErrInvalidHandshake
	}
	return protocol.DecodeClientHello(frame.Payload)
}

// readLoop reads frames until the connection fails, the client closes it or
// the session is dropped.
func (s *Server) readLoop(ctx context.Context, session *Session, conn *websocket.Conn) {
	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) && !session.IsClosed() {
				s.logger.Error("read error", "session_id", session.ID, "error", err)
				s.metrics.RecordWebSocketError("read")
			}
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("frame decode error", "session_id", session.ID, "error", err)
			session.SendError(protocol.ErrInvalidFrame, "invalid frame", false)
			continue
		}

		switch frame.Type {
		case protocol.FrameRender:
			if !s.handleRenderFrame(ctx, session, frame.Payload) {
				return
			}

		case protocol.FrameAck:
			s.handleAckFrame(session, frame.Payload)

		case protocol.FrameControl:
			if !s.handleControlFrame(session, frame.Payload) {
				return
			}

		default:
			s.logger.Warn("unexpected frame type", "session_id", session.ID, "type", frame.Type)
			session.SendError(protocol.ErrInvalidFrame, "unexpected frame type "+frame.Type.String(), false)
		}
	}
}

// handleRenderFrame reconciles the tree of a Render frame. It reports
// whether the connection should stay open.
func (s *Server) handleRenderFrame(ctx context.Context, session *Session, payload []byte) bool {
	render, err := protocol.DecodeRender(payload)
	if err != nil {
		s.logger.Warn("render decode error", "session_id", session.ID, "error", err)
		session.SendError(protocol.ErrInvalidTree, "invalid tree", false)
		return true
	}

	_, err = session.Render(ctx, render.Tree.ToVNode())
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrReconcile):
		s.logger.Error("render failed", "session_id", session.ID, "error", err)
		session.SendError(protocol.ErrReconcileFailed, err.Error(), true)
		s.sessions.Remove(session.ID, protocol.CloseError, "reconcile failed")
		return false
	default:
		// The connection went away mid-render; the frames are in history.
		return false
	}
}

// handleAckFrame trims the session history.
func (s *Server) handleAckFrame(session *Session, payload []byte) {
	ack, err := protocol.DecodeAck(payload)
	if err != nil {
		s.logger.Warn("ack decode error", "session_id", session.ID, "error", err)
		return
	}
	session.Ack(ack.LastSeq)
	s.logger.Debug("received ack", "session_id", session.ID, "seq", ack.LastSeq)
}

// handleControlFrame handles ping, pong, resync and close messages. It
// reports whether the connection should stay open.
func (s *Server) handleControlFrame(session *Session, payload []byte) bool {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Warn("control decode error", "session_id", session.ID, "error", err)
		return true
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			session.sendControl(protocol.NewPong(pp.Timestamp))
		}

	case protocol.ControlPong:
		s.logger.Debug("received pong", "session_id", session.ID)

	case protocol.ControlResyncRequest:
		if rr, ok := data.(*protocol.ResyncRequest); ok {
			result, err := session.Resync(rr.LastSeq)
			if err != nil {
				s.logger.Warn("resync failed", "session_id", session.ID, "error", err)
				return false
			}
			s.logger.Info("resync", "session_id", session.ID, "last_seq", rr.LastSeq, "result", result)
		}

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			s.logger.Info("client closing", "session_id", session.ID, "reason", cm.Reason.String(), "message", cm.Message)
		}
		return false

	default:
		s.logger.Warn("unexpected control type", "session_id", session.ID, "type", ct.String())
	}
	return true
}

// pingLoop pings the client until done is closed or a write fails.
func (s *Server) pingLoop(session *Session, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := session.sendControl(protocol.NewPing(uint64(time.Now().UnixMilli()))); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// sendHandshakeError sends a handshake error response.
func (s *Server) sendHandshakeError(conn *websocket.Conn, status protocol.HandshakeStatus) {
	hello := protocol.NewServerHelloError(status)
	payload := protocol.EncodeServerHello(hello)
	frame := protocol.NewFrame(protocol.FrameHandshake, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// sendServerHello sends a successful handshake response. NextSeq tells a
// resuming client where the session stands.
func (s *Server) sendServerHello(conn *websocket.Conn, session *Session) {
	hello := protocol.NewServerHello(
		session.ID,
		session.Seq()+1,
		uint64(time.Now().UnixMilli()),
	)
	payload := protocol.EncodeServerHello(hello)
	frame := protocol.NewFrame(protocol.FrameHandshake, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
	s.metrics.RecordFrame(protocol.FrameHandshake)
}
