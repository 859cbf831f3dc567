package protocol

// Render is sent by the client with the next tree it wants displayed. The
// server reconciles it against the tree of the previous Render and answers
// with a patches frame.
type Render struct {
	Tree *VNodeWire // nil clears the document
}

// EncodeRender encodes a Render to bytes.
func EncodeRender(r *Render) []byte {
	e := NewEncoder()
	EncodeRenderTo(e, r)
	return e.Bytes()
}

// EncodeRenderTo encodes a Render using the provided encoder.
func EncodeRenderTo(e *Encoder, r *Render) {
	EncodeVNodeWire(e, r.Tree)
}

// DecodeRender decodes a Render from bytes.
func DecodeRender(data []byte) (*Render, error) {
	d := NewDecoder(data)
	return DecodeRenderFrom(d)
}

// DecodeRenderFrom decodes a Render from a decoder.
func DecodeRenderFrom(d *Decoder) (*Render, error) {
	tree, err := DecodeVNodeWire(d)
	if err != nil {
		return nil, err
	}
	return &Render{Tree: tree}, nil
}
