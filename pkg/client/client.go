// Package client is a Go client for vdiff sessions. It keeps a
// livetree.Mirror in step with the server by applying patches frames, and
// handles acknowledgements, pings and full resyncs.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vdiff/pkg/livetree"
	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

var (
	// ErrHandshake wraps a handshake the server refused.
	ErrHandshake = errors.New("client: handshake rejected")

	// ErrClosed is returned once the server closed the session.
	ErrClosed = errors.New("client: session closed by server")
)

// Client is one connection to a vdiff session. It is not safe for
// concurrent use.
type Client struct {
	conn      *websocket.Conn
	mirror    *livetree.Mirror
	sessionID string
	lastSeq   uint64
	nextSeq   uint64 // server's next sequence number at handshake
	resyncing bool
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures Dial.
type Option func(*Client)

// WithSession resumes the session id from lastSeq, the last sequence
// number the mirror applied.
func WithSession(id string, lastSeq uint64) Option {
	return func(c *Client) {
		c.sessionID = id
		c.lastSeq = lastSeq
	}
}

// WithMirror applies patches to m instead of a new mirror. Use it with
// WithSession to resume into the mirror of an earlier connection.
func WithMirror(m *livetree.Mirror) Option {
	return func(c *Client) {
		c.mirror = m
	}
}

// WithTimeout bounds every read and write. Default: 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Dial connects to the WebSocket endpoint at url, performs the handshake
// and, when resuming, waits until the mirror has caught up with the
// session.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{timeout: 10 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.mirror == nil {
		c.mirror = livetree.NewMirror()
	}
	c.logger = c.logger.With("component", "client")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.catchUp(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	hello := protocol.NewClientHello(c.sessionID, c.lastSeq)
	if err := c.write(protocol.NewFrame(protocol.FrameHandshake, protocol.EncodeClientHello(hello))); err != nil {
		return err
	}
	f, err := c.read()
	if err != nil {
		return err
	}
	if f.Type != protocol.FrameHandshake {
		return fmt.Errorf("%w: unexpected %s frame", ErrHandshake, f.Type)
	}
	sh, err := protocol.DecodeServerHello(f.Payload)
	if err != nil {
		return err
	}
	if sh.Status != protocol.HandshakeOK {
		return fmt.Errorf("%w: %s", ErrHandshake, sh.Status)
	}
	if c.sessionID == "" {
		// A new session starts from an empty root.
		c.lastSeq = 0
	}
	c.sessionID = sh.SessionID
	c.nextSeq = sh.NextSeq
	return nil
}

// catchUp reads recovery frames until the mirror holds every frame the
// session had produced at handshake time. A client that claims to be ahead
// of the session is rebuilt by a full resync.
func (c *Client) catchUp(ctx context.Context) error {
	for c.lastSeq+1 != c.nextSeq || c.resyncing {
		if err := c.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Render sends tree to the server and applies the patches it answers with.
// It returns the sequence number of the final patches frame.
func (c *Client) Render(ctx context.Context, tree *vdom.VNode) (uint64, error) {
	payload := protocol.EncodeRender(&protocol.Render{Tree: protocol.VNodeToWire(tree)})
	if len(payload) > protocol.MaxPayloadSize {
		return 0, protocol.ErrFrameTooLarge
	}
	if err := c.write(protocol.NewFrame(protocol.FrameRender, payload)); err != nil {
		return 0, err
	}
	target := c.lastSeq + 1
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return 0, err
		}
		if ev == eventBatch && c.lastSeq >= target {
			return c.lastSeq, nil
		}
	}
}

// Ping sends a ping and waits for the pong.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	ct, pp := protocol.NewPing(uint64(start.UnixMilli()))
	if err := c.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, pp))); err != nil {
		return 0, err
	}
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return 0, err
		}
		if ev == eventPong {
			return time.Since(start), nil
		}
	}
}

// Resync asks the server to bring the mirror up to date and waits until it
// has. With fromScratch the mirror is emptied first and the whole history
// is requested; the server replays it or rebuilds the tree.
func (c *Client) Resync(ctx context.Context, fromScratch bool) error {
	if fromScratch {
		if err := c.mirror.Reset(); err != nil {
			return err
		}
		c.lastSeq = 0
	}
	ct, rr := protocol.NewResyncRequest(c.lastSeq)
	if err := c.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, rr))); err != nil {
		return err
	}
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return err
		}
		if ev == eventResynced {
			return nil
		}
	}
}

// event is what a handled frame meant to the caller waiting on it.
type event int

const (
	eventNone     event = iota
	eventBatch          // final patches frame of a render applied
	eventResynced       // resync finished
	eventPong
)

func (c *Client) step(ctx context.Context) error {
	_, err := c.next(ctx)
	return err
}

func (c *Client) next(ctx context.Context) (event, error) {
	f, err := c.readCtx(ctx)
	if err != nil {
		return eventNone, err
	}
	return c.handle(f)
}

// handle applies one server frame.
func (c *Client) handle(f *protocol.Frame) (event, error) {
	switch f.Type {
	case protocol.FramePatches:
		pf, err := protocol.DecodePatches(f.Payload)
		if err != nil {
			return eventNone, err
		}
		if pf.Seq <= c.lastSeq {
			// Already applied.
			return eventNone, nil
		}
		if pf.Seq != c.lastSeq+1 {
			return eventNone, fmt.Errorf("client: sequence gap: have %d, got %d", c.lastSeq, pf.Seq)
		}
		if err := c.mirror.Apply(protocol.ToVDOM(pf.Patches)); err != nil {
			return eventNone, err
		}
		c.lastSeq = pf.Seq
		if !f.Flags.Has(protocol.FlagFinal) {
			return eventNone, nil
		}
		return eventBatch, c.ack()

	case protocol.FrameControl:
		return c.handleControl(f)

	case protocol.FrameError:
		em, err := protocol.DecodeErrorMessage(f.Payload)
		if err != nil {
			return eventNone, err
		}
		return eventNone, em

	default:
		c.logger.Warn("unexpected frame", "type", f.Type.String())
		return eventNone, nil
	}
}

func (c *Client) handleControl(f *protocol.Frame) (event, error) {
	ct, data, err := protocol.DecodeControl(f.Payload)
	if err != nil {
		return eventNone, err
	}
	switch ct {
	case protocol.ControlPing:
		pp := data.(*protocol.PingPong)
		pct, pong := protocol.NewPong(pp.Timestamp)
		return eventNone, c.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(pct, pong)))

	case protocol.ControlPong:
		return eventPong, nil

	case protocol.ControlResyncFull:
		rr := data.(*protocol.ResyncResponse)
		if !c.resyncing {
			if err := c.mirror.Reset(); err != nil {
				return eventNone, err
			}
			c.resyncing = true
		}
		if err := c.mirror.Apply(protocol.ToVDOM(rr.Patches)); err != nil {
			return eventNone, err
		}
		if !f.Flags.Has(protocol.FlagFinal) {
			return eventNone, nil
		}
		c.resyncing = false
		c.lastSeq = rr.FromSeq
		return eventResynced, c.ack()

	case protocol.ControlResyncPatches:
		// Ends a replay; the frames before it carried the patches.
		rr := data.(*protocol.ResyncResponse)
		if rr.FromSeq != c.lastSeq {
			return eventNone, fmt.Errorf("client: resync ended at %d, have %d", rr.FromSeq, c.lastSeq)
		}
		return eventResynced, nil

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			return eventNone, fmt.Errorf("%w: %s: %s", ErrClosed, cm.Reason, cm.Message)
		}
		return eventNone, ErrClosed
	}
	return eventNone, nil
}

func (c *Client) ack() error {
	payload := protocol.EncodeAck(protocol.NewAck(c.lastSeq, protocol.DefaultWindow))
	return c.write(protocol.NewFrame(protocol.FrameAck, payload))
}

func (c *Client) write(f *protocol.Frame) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, f.Encode())
}

func (c *Client) read() (*protocol.Frame, error) {
	return c.readCtx(context.Background())
}

func (c *Client) readCtx(ctx context.Context) (*protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeFrame(msg)
}

// Mirror returns the client's copy of the tree.
func (c *Client) Mirror() *livetree.Mirror {
	return c.mirror
}

// SessionID returns the session ID assigned by the server.
func (c *Client) SessionID() string {
	return c.sessionID
}

// LastSeq returns the sequence number of the last applied frame.
func (c *Client) LastSeq() uint64 {
	return c.lastSeq
}

// Shape returns the mirrored tree in scenario notation.
func (c *Client) Shape() string {
	return livetree.Shape(c.mirror.Root())
}

// Close tells the server the client is leaving and closes the connection.
// The session stays resumable.
func (c *Client) Close() error {
	ct, cm := protocol.NewClose(protocol.CloseGoingAway, "")
	c.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, cm)))
	return c.conn.Close()
}

// Drop closes the connection without telling the server, as a network
// failure would.
func (c *Client) Drop() error {
	return c.conn.Close()
}
