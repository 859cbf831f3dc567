package protocol

import "encoding/binary"

// Encoder appends protocol values to a growing buffer. Writes cannot fail.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder sized for a typical control payload.
func NewEncoder() *Encoder {
	return NewEncoderWithCap(256)
}

// NewEncoderWithCap returns an encoder whose buffer starts with room for n
// bytes.
func NewEncoderWithCap(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

// Reset empties the encoder and keeps its buffer.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Bytes returns the encoded bytes, valid until the next write or Reset.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int { return len(e.buf) }

// WriteByte appends b. Unlike io.ByteWriter it returns nothing.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteUvarint appends v as a varint of UvarintLen(v) bytes.
func (e *Encoder) WriteUvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// WriteString appends the varint length of s followed by its bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteUvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteBool appends 1 for true and 0 for false.
func (e *Encoder) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteUint16(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

// WriteUint64 appends v big-endian. Timestamps use it.
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}
