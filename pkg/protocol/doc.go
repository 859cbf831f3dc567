// Package protocol implements the binary wire protocol between a vdiff
// server and its clients.
//
// The server owns the virtual tree and the reconciler; the client owns a
// live mirror. Clients send the next tree they want rendered, the server
// reconciles it against the previous one and streams back the resulting
// patches, which the client replays in order.
//
// # Wire Format
//
// All messages are framed with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// # Frame Types
//
//   - FrameHandshake (0x00): Connection setup
//   - FrameRender (0x01): Client → Server next tree
//   - FramePatches (0x02): Server → Client patches
//   - FrameControl (0x03): Control messages (ping, resync, close)
//   - FrameAck (0x04): Acknowledgment
//   - FrameError (0x05): Error message
//
// # Encoding
//
//   - Varint: Compact encoding for small integers (protobuf-style)
//   - Length-prefixed: Strings prefixed with varint length
//   - Big-endian: Fixed-width integers (uint16, uint64)
//
// # Patches
//
// Patches mirror the reconciler primitives. A node is first created
// detached (CreateNode, carrying the node without children) and then placed
// with InsertNode. MoveNode and InsertNode name the parent and the sibling to
// insert before; an empty Before appends.
//
//	[Op: 0x06][HID][ParentID][Before]
//	Total: ~10 bytes for moving "h12" before "h9" in "h3"
//
// A batch larger than MaxPayloadSize is split with ChunkPatches into several
// frames with consecutive sequence numbers. Each chunk can be applied on its
// own since patches are applied strictly in order.
//
// # Handshake
//
//	Client                          Server
//	  │                                │
//	  │──── ClientHello ─────────────>│
//	  │     (version, session, seq)   │
//	  │                                │
//	  │<──── ServerHello ─────────────│
//	  │     (status, session, seq)    │
//	  │                                │
//
// A client resuming a session sends its last applied sequence number. The
// server replays the missed batches from its history or, if they are gone,
// sends a full resync that rebuilds the mirror from scratch.
package protocol
