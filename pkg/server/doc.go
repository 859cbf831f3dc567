// Package server runs reconciliation sessions over WebSocket.
//
// A client opens a session with a handshake, then sends whole trees in
// Render frames. The server reconciles each tree against the previous one
// with vdom and answers with the patches that bring the client's mirror up
// to date. The server never sees the client's live tree; it only keeps the
// last tree it was sent, with the hydration IDs assigned to it.
//
// # Architecture
//
//   - Server: HTTP routes, WebSocket handshake and graceful shutdown
//   - SessionManager: bounded set of sessions, evicting the least recently used
//   - Session: the last tree, the sequence counter and the replay history
//   - PatchHistory: ring buffer of encoded patches frames
//
// # Session Lifecycle
//
// Every patches frame carries a sequence number. A render that produces
// more patches than fit one frame is split across several frames, the last
// one flagged final. Clients acknowledge applied frames, which trims the
// history.
//
// A session survives its connection. A client that reconnects with its
// session ID and the last sequence number it applied gets:
//
//  1. nothing, if it is up to date
//  2. the missed frames replayed from history, if all are still there
//  3. a full resync otherwise: ResyncFull control frames whose patches
//     rebuild the current tree from an emptied root
//
// # Example Usage
//
//	srv, err := server.New(&server.ServerConfig{Address: ":8080"},
//	    server.WithMetrics(middleware.Prometheus()),
//	    server.WithSnapshots(snapshot.NewMemoryStore()))
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
//
// # Thread Safety
//
// Session methods are safe for concurrent use. A session serializes its
// render passes and writes, so frames reach the client in sequence order.
package server
