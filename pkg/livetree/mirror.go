package livetree

import (
	"errors"
	"fmt"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

var (
	ErrUnknownHID   = errors.New("livetree: unknown hydration ID")
	ErrDuplicateHID = errors.New("livetree: hydration ID already in use")
	ErrMissingNode  = errors.New("livetree: create patch without node")
	ErrUnknownOp    = errors.New("livetree: unknown patch op")
)

// Mirror replays patches addressed by hydration ID onto a Document. It is
// the client end of the server-driven model.
type Mirror struct {
	doc   *Document
	nodes map[string]*Node
}

// NewMirror creates a Mirror whose root is bound to vdom.RootHID.
func NewMirror() *Mirror {
	doc := New()
	doc.root.ID = vdom.RootHID
	m := &Mirror{
		doc:   doc,
		nodes: map[string]*Node{vdom.RootHID: doc.root},
	}
	doc.OnDestroy = func(n *Node) {
		delete(m.nodes, n.ID)
	}
	return m
}

// Document returns the mirrored live tree.
func (m *Mirror) Document() *Document {
	return m.doc
}

// Root returns the mirrored root node.
func (m *Mirror) Root() *Node {
	return m.doc.root
}

// Len returns the number of addressable nodes, the root included.
func (m *Mirror) Len() int {
	return len(m.nodes)
}

// Lookup returns the node bound to hid.
func (m *Mirror) Lookup(hid string) (*Node, bool) {
	n, ok := m.nodes[hid]
	return n, ok
}

// Reset empties the mirror down to its root, forgetting every hydration ID
// including created nodes that were never attached. It precedes a full
// resync.
func (m *Mirror) Reset() error {
	kids := m.doc.root.Children()
	handles := make([]vdom.Handle, len(kids))
	for i, k := range kids {
		handles[i] = k
	}
	if err := m.doc.RemoveAllChildren(m.doc.root, handles); err != nil {
		return err
	}
	m.nodes = map[string]*Node{vdom.RootHID: m.doc.root}
	return nil
}

// Apply replays patches in order and stops at the first failure. Patches
// before the failing one stay applied.
func (m *Mirror) Apply(patches []vdom.Patch) error {
	for i := range patches {
		if err := m.apply(&patches[i]); err != nil {
			return fmt.Errorf("patch %d (%s %s): %w", i, patches[i].Op, patches[i].HID, err)
		}
	}
	return nil
}

func (m *Mirror) apply(p *vdom.Patch) error {
	if p.Op == vdom.PatchCreateNode {
		if p.Node == nil {
			return ErrMissingNode
		}
		if _, ok := m.nodes[p.HID]; ok {
			return ErrDuplicateHID
		}
		h, err := m.doc.Materialize(p.Node)
		if err != nil {
			return err
		}
		n := h.(*Node)
		n.ID = p.HID
		m.nodes[p.HID] = n
		return nil
	}

	n, err := m.lookup(p.HID)
	if err != nil {
		return err
	}

	switch p.Op {
	case vdom.PatchInsertNode, vdom.PatchMoveNode:
		parent, err := m.lookup(p.ParentID)
		if err != nil {
			return err
		}
		var ref vdom.Handle
		if p.Before != "" {
			r, err := m.lookup(p.Before)
			if err != nil {
				return err
			}
			ref = r
		}
		if p.Op == vdom.PatchInsertNode {
			return m.doc.InsertBefore(parent, n, ref)
		}
		return m.doc.MoveBefore(parent, n, ref)

	case vdom.PatchRemoveNode:
		parent := n.parent
		if p.ParentID != "" {
			if parent, err = m.lookup(p.ParentID); err != nil {
				return err
			}
		}
		if parent == nil {
			return ErrNotChild
		}
		return m.doc.RemoveChild(parent, n)

	case vdom.PatchSetText:
		n.Text = p.Value

	case vdom.PatchSetAttr:
		if n.Attrs == nil {
			n.Attrs = make(map[string]string)
		}
		n.Attrs[p.Key] = p.Value

	case vdom.PatchRemoveAttr:
		delete(n.Attrs, p.Key)

	default:
		return ErrUnknownOp
	}
	return nil
}

func (m *Mirror) lookup(hid string) (*Node, error) {
	n, ok := m.nodes[hid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHID, hid)
	}
	return n, nil
}
