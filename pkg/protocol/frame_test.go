package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantLen int // expected total length including header
	}{
		{
			name:    "empty_payload",
			frame:   Frame{Type: FrameRender, Payload: []byte{}},
			wantLen: FrameHeaderSize,
		},
		{
			name:    "with_payload",
			frame:   Frame{Type: FramePatches, Flags: FlagSequenced, Payload: []byte{0x01, 0x02, 0x03}},
			wantLen: FrameHeaderSize + 3,
		},
		{
			name:    "with_flags",
			frame:   Frame{Type: FramePatches, Flags: FlagSequenced | FlagFinal | FlagResync, Payload: []byte("test")},
			wantLen: FrameHeaderSize + 4,
		},
		{
			name:    "handshake",
			frame:   Frame{Type: FrameHandshake, Payload: []byte{0x01, 0x00, 0x00, 0x00}},
			wantLen: FrameHeaderSize + 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.frame.Encode()
			if len(encoded) != tc.wantLen {
				t.Errorf("Encode() length = %d, want %d", len(encoded), tc.wantLen)
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if decoded.Type != tc.frame.Type {
				t.Errorf("Type = %v, want %v", decoded.Type, tc.frame.Type)
			}
			if decoded.Flags != tc.frame.Flags {
				t.Errorf("Flags = %v, want %v", decoded.Flags, tc.frame.Flags)
			}
			if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
				t.Errorf("Payload = %v, want %v", decoded.Payload, tc.frame.Payload)
			}
		})
	}
}

func TestFrameFlags(t *testing.T) {
	flags := FlagSequenced | FlagFinal
	if !flags.Has(FlagSequenced) || !flags.Has(FlagFinal) {
		t.Errorf("flags %b should have Sequenced and Final", flags)
	}
	if flags.Has(FlagResync) {
		t.Errorf("flags %b should not have Resync", flags)
	}
}

func TestFrameTypeString(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameHandshake, "Handshake"},
		{FrameRender, "Render"},
		{FramePatches, "Patches"},
		{FrameControl, "Control"},
		{FrameAck, "Ack"},
		{FrameError, "Error"},
		{FrameType(0x42), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.ft.String(); got != tc.want {
			t.Errorf("FrameType(%d).String() = %q, want %q", tc.ft, got, tc.want)
		}
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	if _, err := DecodeFrame([]byte{0x01, 0x00}); err != io.ErrUnexpectedEOF {
		t.Errorf("short header error = %v, want ErrUnexpectedEOF", err)
	}
	if _, err := DecodeFrame([]byte{0x01, 0x00, 0x00, 0x05, 0x01}); err != io.ErrUnexpectedEOF {
		t.Errorf("short payload error = %v, want ErrUnexpectedEOF", err)
	}
	if _, err := DecodeFrame([]byte{0x09, 0x00, 0x00, 0x00}); err != ErrInvalidFrameType {
		t.Errorf("unknown type error = %v, want ErrInvalidFrameType", err)
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	frames := []*Frame{
		NewFrame(FrameRender, []byte{0x01}),
		NewFrameWithFlags(FramePatches, FlagSequenced|FlagFinal, []byte("patches")),
		NewFrame(FrameAck, nil),
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}

	for i, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame(%d) error = %v", i, err)
		}
		if got.Type != want.Type || got.Flags != want.Flags || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}

	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("ReadFrame() on empty reader error = %v, want EOF", err)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	f := NewFrame(FramePatches, make([]byte, MaxPayloadSize+1))
	if err := WriteFrame(&buf, f); err != ErrFrameTooLarge {
		t.Errorf("WriteFrame() error = %v, want ErrFrameTooLarge", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteFrame() wrote %d bytes on error", buf.Len())
	}
}

func TestReadFrameInvalidType(t *testing.T) {
	r := bytes.NewReader([]byte{0x77, 0x00, 0x00, 0x00})
	if _, err := ReadFrame(r); err != ErrInvalidFrameType {
		t.Errorf("ReadFrame() error = %v, want ErrInvalidFrameType", err)
	}
}
