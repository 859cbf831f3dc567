// Package snapshot stores virtual trees by content hash so that a session's
// state can be inspected and replayed after the fact.
//
// A snapshot is encoded with the binary protocol encoder and addressed by the
// base64url form of its BLAKE2b-256 hash. Stores only move opaque bytes; Save
// and Load do the encoding and verify the hash.
package snapshot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/minio/blake2b-simd"

	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

const (
	formatVersion = 1
	hashSize      = 32 // BLAKE2b-256
)

var (
	ErrNotFound    = errors.New("snapshot: not found")
	ErrCorrupt     = errors.New("snapshot: corrupt data")
	ErrBadHash     = errors.New("snapshot: malformed hash")
	ErrUnsupported = errors.New("snapshot: unsupported format version")
)

// Snapshot is the tree of a session after a given patch sequence number.
type Snapshot struct {
	SessionID string
	Seq       uint64
	Taken     time.Time
	Tree      *protocol.VNodeWire
}

// New captures tree. Handles and event handlers are not part of a snapshot.
func New(sessionID string, seq uint64, tree *vdom.VNode) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		Seq:       seq,
		Taken:     time.Now().UTC(),
		Tree:      protocol.VNodeToWire(tree),
	}
}

// Encode serializes s.
func Encode(s *Snapshot) []byte {
	e := protocol.NewEncoderWithCap(256)
	e.WriteByte(formatVersion)
	e.WriteString(s.SessionID)
	e.WriteUvarint(s.Seq)
	e.WriteUint64(uint64(s.Taken.UnixNano()))
	protocol.EncodeVNodeWire(e, s.Tree)
	return e.Bytes()
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Snapshot, error) {
	d := protocol.NewDecoder(data)
	v, err := d.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, v)
	}

	var s Snapshot
	if s.SessionID, err = d.ReadString(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if s.Seq, err = d.ReadUvarint(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	nanos, err := d.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	s.Taken = time.Unix(0, int64(nanos)).UTC()
	if s.Tree, err = protocol.DecodeVNodeWire(d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if !d.EOF() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, d.Remaining())
	}
	return &s, nil
}

// Hash returns the content address of data.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidHash reports whether h has the form Hash produces. Stores reject
// anything else, so a hash can be used as a file name or object key as is.
func ValidHash(h string) bool {
	if len(h) != base64.RawURLEncoding.EncodedLen(hashSize) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(h)
	return err == nil
}

// Store holds snapshot bytes by content hash.
type Store interface {
	// Put stores data and returns its hash. Storing the same bytes twice is
	// not an error.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes stored under hash, or an error wrapping
	// ErrNotFound.
	Get(ctx context.Context, hash string) ([]byte, error)
}

// Save encodes s and puts it into st.
func Save(ctx context.Context, st Store, s *Snapshot) (string, error) {
	return st.Put(ctx, Encode(s))
}

// Load fetches, verifies and decodes the snapshot stored under hash.
func Load(ctx context.Context, st Store, hash string) (*Snapshot, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrBadHash, hash)
	}
	data, err := st.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if Hash(data) != hash {
		return nil, fmt.Errorf("%w: hash mismatch for %s", ErrCorrupt, hash)
	}
	return Decode(data)
}
