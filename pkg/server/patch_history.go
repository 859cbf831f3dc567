package server

import (
	"sync"
	"time"
)

// PatchHistoryEntry stores a sent patch frame for potential replay.
type PatchHistoryEntry struct {
	Seq    uint64    // Patch sequence number
	Frame  []byte    // Pre-encoded FramePatches for fast replay
	SentAt time.Time // When the frame was produced
}

// PatchHistory is a thread-safe ring buffer of encoded patch frames.
// It supports:
//   - Fast insertion at head
//   - Lookup by sequence range for resume
//   - Trimming of frames the client has acknowledged
//
// Sequence numbers must be added in increasing, gap-free order. The ring
// overwrites the oldest entry when full.
type PatchHistory struct {
	mu       sync.RWMutex
	entries  []*PatchHistoryEntry
	head     int    // Next write position (circular)
	count    int    // Current number of entries
	capacity int    // Max entries
	minSeq   uint64 // Lowest sequence in buffer
	maxSeq   uint64 // Highest sequence ever added
}

// NewPatchHistory creates a new patch history ring buffer with the given capacity.
func NewPatchHistory(capacity int) *PatchHistory {
	if capacity <= 0 {
		capacity = 64
	}
	return &PatchHistory{
		entries:  make([]*PatchHistoryEntry, capacity),
		capacity: capacity,
	}
}

// tail returns the index of the oldest entry. Callers hold mu.
func (h *PatchHistory) tail() int {
	return (h.head - h.count + h.capacity) % h.capacity
}

// Add stores a patch frame in the buffer. The frame bytes are copied.
func (h *PatchHistory) Add(seq uint64, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	frameCopy := make([]byte, len(frame))
	copy(frameCopy, frame)

	h.entries[h.head] = &PatchHistoryEntry{
		Seq:    seq,
		Frame:  frameCopy,
		SentAt: time.Now(),
	}
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}

	h.maxSeq = seq
	h.minSeq = h.entries[h.tail()].Seq
}

// GetFrames returns frames for sequences (afterSeq, toSeq] in order.
// Returns nil if any sequence in the requested range is not available.
func (h *PatchHistory) GetFrames(afterSeq, toSeq uint64) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || afterSeq >= toSeq {
		return nil
	}
	if afterSeq+1 < h.minSeq || toSeq > h.maxSeq {
		return nil
	}

	frames := make([][]byte, 0, toSeq-afterSeq)
	start := h.tail() + int(afterSeq+1-h.minSeq)
	for i := range int(toSeq - afterSeq) {
		entry := h.entries[(start+i)%h.capacity]
		if entry == nil || entry.Seq != afterSeq+1+uint64(i) {
			return nil
		}
		frames = append(frames, entry.Frame)
	}
	return frames
}

// GarbageCollect drops every entry with a sequence number <= ackSeq. The
// client has applied those frames and will never ask for them again.
func (h *PatchHistory) GarbageCollect(ackSeq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.count > 0 {
		t := h.tail()
		if h.entries[t].Seq > ackSeq {
			h.minSeq = h.entries[t].Seq
			return
		}
		h.entries[t] = nil
		h.count--
	}
	h.minSeq = h.maxSeq + 1
}

// CanRecover reports whether every sequence from lastSeq+1 to MaxSeq is
// still in the buffer.
func (h *PatchHistory) CanRecover(lastSeq uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return false
	}
	return lastSeq+1 >= h.minSeq && lastSeq < h.maxSeq
}

// MinSeq returns the minimum recoverable sequence.
func (h *PatchHistory) MinSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.minSeq
}

// MaxSeq returns the highest sequence added.
func (h *PatchHistory) MaxSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxSeq
}

// Count returns the number of entries in the buffer.
func (h *PatchHistory) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Clear removes all entries from the buffer.
func (h *PatchHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		h.entries[i] = nil
	}
	h.head = 0
	h.count = 0
	h.minSeq = 0
	h.maxSeq = 0
}
