package protocol

import (
	"maps"
	"slices"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// VNodeWire is the wire format for VNodes.
// It contains only serializable data (no event handlers, components or live
// handles).
type VNodeWire struct {
	Kind     vdom.VKind        // Node type
	Tag      string            // Element tag name
	Key      string            // Explicit reconciliation key
	Attrs    map[string]string // String attributes only (no handlers)
	Children []*VNodeWire      // Child nodes
	Text     string            // For Text and Raw nodes
}

// VNodeToWire converts a vdom.VNode and its subtree to wire format.
// Event handlers are stripped; only string attributes are included.
func VNodeToWire(node *vdom.VNode) *VNodeWire {
	w := ShallowWire(node)
	if w == nil {
		return nil
	}
	if len(node.Children) > 0 {
		w.Children = make([]*VNodeWire, 0, len(node.Children))
		for _, child := range node.Children {
			if child != nil {
				w.Children = append(w.Children, VNodeToWire(child))
			}
		}
	}
	return w
}

// ShallowWire converts a single node without its children, as carried by
// CreateNode patches.
func ShallowWire(node *vdom.VNode) *VNodeWire {
	if node == nil {
		return nil
	}
	return &VNodeWire{
		Kind:  node.Kind,
		Tag:   node.Tag,
		Key:   node.Key,
		Attrs: vdom.StringAttrs(node),
		Text:  node.Text,
	}
}

// EncodeVNodeWire encodes a VNodeWire to bytes using the provided encoder.
// Attributes are written in key order so equal trees encode identically.
func EncodeVNodeWire(e *Encoder, node *VNodeWire) {
	if node == nil {
		e.WriteByte(0xFF) // Null marker
		return
	}

	e.WriteByte(byte(node.Kind))

	switch node.Kind {
	case vdom.KindElement:
		e.WriteString(node.Tag)
		e.WriteString(node.Key)

		e.WriteUvarint(uint64(len(node.Attrs)))
		for _, k := range slices.Sorted(maps.Keys(node.Attrs)) {
			e.WriteString(k)
			e.WriteString(node.Attrs[k])
		}

		encodeChildren(e, node.Children)

	case vdom.KindText, vdom.KindRaw:
		e.WriteString(node.Text)

	case vdom.KindFragment:
		e.WriteString(node.Key)
		encodeChildren(e, node.Children)

	case vdom.KindComponent:
		// Components render on the server; they travel as empty fragments.
		e.WriteString(node.Key)
		e.WriteUvarint(0)
	}
}

func encodeChildren(e *Encoder, children []*VNodeWire) {
	e.WriteUvarint(uint64(len(children)))
	for _, child := range children {
		EncodeVNodeWire(e, child)
	}
}

// DecodeVNodeWire decodes a VNodeWire from the decoder.
// SECURITY: Enforces MaxVNodeDepth to prevent stack overflow attacks.
func DecodeVNodeWire(d *Decoder) (*VNodeWire, error) {
	return decodeVNodeWireWithDepth(d, 0)
}

func decodeVNodeWireWithDepth(d *Decoder, depth int) (*VNodeWire, error) {
	// SECURITY: Check depth limit before any work
	if err := checkDepth(depth, MaxVNodeDepth); err != nil {
		return nil, err
	}

	kindByte, err := d.ReadByte()
	if err != nil {
		return nil, err
	}

	// Null marker
	if kindByte == 0xFF {
		return nil, nil
	}

	node := &VNodeWire{
		Kind: vdom.VKind(kindByte),
	}

	switch node.Kind {
	case vdom.KindElement:
		if node.Tag, err = d.ReadString(); err != nil {
			return nil, err
		}
		if node.Key, err = d.ReadString(); err != nil {
			return nil, err
		}

		// SECURITY: Use ReadCollectionCount to prevent DoS
		attrCount, err := d.ReadCollectionCount()
		if err != nil {
			return nil, err
		}
		if attrCount > 0 {
			node.Attrs = make(map[string]string, attrCount)
			for i := 0; i < attrCount; i++ {
				key, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				value, err := d.ReadString()
				if err != nil {
					return nil, err
				}
				node.Attrs[key] = value
			}
		}

		if node.Children, err = decodeChildren(d, depth); err != nil {
			return nil, err
		}

	case vdom.KindText, vdom.KindRaw:
		if node.Text, err = d.ReadString(); err != nil {
			return nil, err
		}

	case vdom.KindFragment, vdom.KindComponent:
		if node.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if node.Children, err = decodeChildren(d, depth); err != nil {
			return nil, err
		}
		node.Kind = vdom.KindFragment

	default:
		return nil, ErrInvalidNodeKind
	}

	return node, nil
}

func decodeChildren(d *Decoder, depth int) ([]*VNodeWire, error) {
	// SECURITY: Use ReadCollectionCount to prevent DoS
	count, err := d.ReadCollectionCount()
	if err != nil || count == 0 {
		return nil, err
	}
	children := make([]*VNodeWire, count)
	for i := range children {
		// SECURITY: Increment depth for child nodes
		if children[i], err = decodeVNodeWireWithDepth(d, depth+1); err != nil {
			return nil, err
		}
	}
	return children, nil
}

// ToVNode converts a VNodeWire back to a vdom.VNode.
// Note: Event handlers cannot be restored from wire format.
func (w *VNodeWire) ToVNode() *vdom.VNode {
	if w == nil {
		return nil
	}

	node := &vdom.VNode{
		Kind: w.Kind,
		Tag:  w.Tag,
		Key:  w.Key,
		Text: w.Text,
	}

	if len(w.Attrs) > 0 {
		node.Props = make(vdom.Props, len(w.Attrs))
		for k, v := range w.Attrs {
			node.Props[k] = v
		}
	}

	if len(w.Children) > 0 {
		node.Children = make([]*vdom.VNode, len(w.Children))
		for i, child := range w.Children {
			node.Children[i] = child.ToVNode()
		}
	}

	return node
}

// NewTextWire creates a text VNodeWire.
func NewTextWire(text string) *VNodeWire {
	return &VNodeWire{
		Kind: vdom.KindText,
		Text: text,
	}
}

// NewElementWire creates an element VNodeWire.
func NewElementWire(tag, key string, attrs map[string]string, children ...*VNodeWire) *VNodeWire {
	return &VNodeWire{
		Kind:     vdom.KindElement,
		Tag:      tag,
		Key:      key,
		Attrs:    attrs,
		Children: children,
	}
}
