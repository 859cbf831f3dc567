package protocol

import "github.com/vango-dev/vdiff/pkg/vdom"

// PatchOp is the type of patch operation.
// Values match vdom.PatchOp one to one.
type PatchOp uint8

const (
	PatchSetText    PatchOp = 0x01 // Update text content
	PatchSetAttr    PatchOp = 0x02 // Set attribute
	PatchRemoveAttr PatchOp = 0x03 // Remove attribute
	PatchInsertNode PatchOp = 0x04 // Attach a created node
	PatchRemoveNode PatchOp = 0x05 // Remove node and its subtree
	PatchMoveNode   PatchOp = 0x06 // Move node before a sibling
	PatchCreateNode PatchOp = 0x07 // Create a detached node
)

// Valid reports whether op is a known patch operation.
func (op PatchOp) Valid() bool {
	return op >= PatchSetText && op <= PatchCreateNode
}

// String returns the string representation of the patch operation.
func (op PatchOp) String() string {
	return vdom.PatchOp(op).String()
}

// Patch represents a single live-tree operation.
type Patch struct {
	Op       PatchOp
	HID      string     // Target node's hydration ID
	Key      string     // Attribute key
	Value    string     // Value for text/attr
	ParentID string     // Parent HID for InsertNode/MoveNode/RemoveNode
	Before   string     // Reference sibling HID ("" appends)
	Node     *VNodeWire // For CreateNode, without children
}

// PatchesFrame represents a batch of patches with sequence number.
type PatchesFrame struct {
	Seq     uint64
	Patches []Patch
}

// EncodePatches encodes a patches frame to bytes.
func EncodePatches(pf *PatchesFrame) []byte {
	e := NewEncoder()
	EncodePatchesTo(e, pf)
	return e.Bytes()
}

// EncodePatchesTo encodes a patches frame using the provided encoder.
func EncodePatchesTo(e *Encoder, pf *PatchesFrame) {
	e.WriteUvarint(pf.Seq)
	encodePatchList(e, pf.Patches)
}

func encodePatchList(e *Encoder, patches []Patch) {
	e.WriteUvarint(uint64(len(patches)))
	for i := range patches {
		encodePatch(e, &patches[i])
	}
}

// encodePatch encodes a single patch.
func encodePatch(e *Encoder, p *Patch) {
	e.WriteByte(byte(p.Op))
	e.WriteString(p.HID)

	switch p.Op {
	case PatchSetText:
		e.WriteString(p.Value)

	case PatchSetAttr:
		e.WriteString(p.Key)
		e.WriteString(p.Value)

	case PatchRemoveAttr:
		e.WriteString(p.Key)

	case PatchInsertNode, PatchMoveNode:
		e.WriteString(p.ParentID)
		e.WriteString(p.Before)

	case PatchRemoveNode:
		e.WriteString(p.ParentID)

	case PatchCreateNode:
		EncodeVNodeWire(e, p.Node)
	}
}

// DecodePatches decodes a patches frame from bytes.
func DecodePatches(data []byte) (*PatchesFrame, error) {
	d := NewDecoder(data)
	return DecodePatchesFrom(d)
}

// DecodePatchesFrom decodes a patches frame from a decoder.
func DecodePatchesFrom(d *Decoder) (*PatchesFrame, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	patches, err := decodePatchList(d)
	if err != nil {
		return nil, err
	}

	return &PatchesFrame{
		Seq:     seq,
		Patches: patches,
	}, nil
}

func decodePatchList(d *Decoder) ([]Patch, error) {
	// SECURITY: Use ReadCollectionCount to prevent DoS
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	patches := make([]Patch, count)
	for i := range patches {
		if err := decodePatch(d, &patches[i]); err != nil {
			return nil, err
		}
	}
	return patches, nil
}

// decodePatch decodes a single patch.
// Unknown ops are rejected since their payload length is unknown.
func decodePatch(d *Decoder, p *Patch) error {
	opByte, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = PatchOp(opByte)
	if !p.Op.Valid() {
		return ErrInvalidPatchOp
	}

	p.HID, err = d.ReadString()
	if err != nil {
		return err
	}

	switch p.Op {
	case PatchSetText:
		p.Value, err = d.ReadString()

	case PatchSetAttr:
		p.Key, err = d.ReadString()
		if err != nil {
			return err
		}
		p.Value, err = d.ReadString()

	case PatchRemoveAttr:
		p.Key, err = d.ReadString()

	case PatchInsertNode, PatchMoveNode:
		p.ParentID, err = d.ReadString()
		if err != nil {
			return err
		}
		p.Before, err = d.ReadString()

	case PatchRemoveNode:
		p.ParentID, err = d.ReadString()

	case PatchCreateNode:
		p.Node, err = DecodeVNodeWire(d)
	}

	return err
}

// EncodedLen returns the number of bytes encodePatch writes for p.
func (p *Patch) EncodedLen() int {
	n := 1 + StringLen(p.HID)
	switch p.Op {
	case PatchSetText:
		n += StringLen(p.Value)
	case PatchSetAttr:
		n += StringLen(p.Key) + StringLen(p.Value)
	case PatchRemoveAttr:
		n += StringLen(p.Key)
	case PatchInsertNode, PatchMoveNode:
		n += StringLen(p.ParentID) + StringLen(p.Before)
	case PatchRemoveNode:
		n += StringLen(p.ParentID)
	case PatchCreateNode:
		e := NewEncoderWithCap(64)
		EncodeVNodeWire(e, p.Node)
		n += e.Len()
	}
	return n
}

// ChunkPatches splits a batch so that each chunk encodes, together with its
// sequence number, within maxPayload bytes. Order is preserved. An empty
// batch yields a single empty chunk so that it still takes a sequence number.
// A single patch that cannot fit returns ErrFrameTooLarge.
func ChunkPatches(patches []Patch, maxPayload int) ([][]Patch, error) {
	if len(patches) == 0 {
		return [][]Patch{nil}, nil
	}

	// Sequence number and count prefixes, at their widest.
	const overhead = 2 * MaxVarintLen
	budget := maxPayload - overhead

	var chunks [][]Patch
	start, size := 0, 0
	for i := range patches {
		n := patches[i].EncodedLen()
		if n > budget {
			return nil, ErrFrameTooLarge
		}
		if size+n > budget {
			chunks = append(chunks, patches[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(chunks, patches[start:]), nil
}

// FromVDOM converts reconciler patches to their wire form.
func FromVDOM(patches []vdom.Patch) []Patch {
	out := make([]Patch, len(patches))
	for i, p := range patches {
		out[i] = Patch{
			Op:       PatchOp(p.Op),
			HID:      p.HID,
			Key:      p.Key,
			Value:    p.Value,
			ParentID: p.ParentID,
			Before:   p.Before,
		}
		if p.Op == vdom.PatchCreateNode {
			out[i].Node = ShallowWire(p.Node)
		}
	}
	return out
}

// ToVDOM converts wire patches back to reconciler patches, as consumed by
// livetree.Mirror.
func ToVDOM(patches []Patch) []vdom.Patch {
	out := make([]vdom.Patch, len(patches))
	for i, p := range patches {
		out[i] = vdom.Patch{
			Op:       vdom.PatchOp(p.Op),
			HID:      p.HID,
			Key:      p.Key,
			Value:    p.Value,
			ParentID: p.ParentID,
			Before:   p.Before,
			Node:     p.Node.ToVNode(),
		}
	}
	return out
}

// NewSetTextPatch creates a SetText patch.
func NewSetTextPatch(hid, text string) Patch {
	return Patch{Op: PatchSetText, HID: hid, Value: text}
}

// NewSetAttrPatch creates a SetAttr patch.
func NewSetAttrPatch(hid, key, value string) Patch {
	return Patch{Op: PatchSetAttr, HID: hid, Key: key, Value: value}
}

// NewRemoveAttrPatch creates a RemoveAttr patch.
func NewRemoveAttrPatch(hid, key string) Patch {
	return Patch{Op: PatchRemoveAttr, HID: hid, Key: key}
}

// NewCreateNodePatch creates a CreateNode patch.
func NewCreateNodePatch(hid string, node *VNodeWire) Patch {
	return Patch{Op: PatchCreateNode, HID: hid, Node: node}
}

// NewInsertNodePatch creates an InsertNode patch.
func NewInsertNodePatch(hid, parentID, before string) Patch {
	return Patch{Op: PatchInsertNode, HID: hid, ParentID: parentID, Before: before}
}

// NewRemoveNodePatch creates a RemoveNode patch.
func NewRemoveNodePatch(hid, parentID string) Patch {
	return Patch{Op: PatchRemoveNode, HID: hid, ParentID: parentID}
}

// NewMoveNodePatch creates a MoveNode patch.
func NewMoveNodePatch(hid, parentID, before string) Patch {
	return Patch{Op: PatchMoveNode, HID: hid, ParentID: parentID, Before: before}
}
