package livetree

import (
	"errors"
	"fmt"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

var (
	ErrNotChild      = errors.New("livetree: node is not a child of parent")
	ErrAttached      = errors.New("livetree: node is already attached")
	ErrDestroyed     = errors.New("livetree: node has been destroyed")
	ErrForeignHandle = errors.New("livetree: handle does not belong to this document")
)

// Document is an in-memory live tree. It implements vdom.Applier and
// vdom.Clearer with *Node handles and rejects every primitive a browser DOM
// would reject.
type Document struct {
	root *Node
	live int

	// OnDestroy, if set, is called for every node of a removed subtree,
	// parents before children.
	OnDestroy func(*Node)
}

// New creates a Document with an empty root element.
func New() *Document {
	return &Document{root: &Node{Kind: vdom.KindElement, Tag: "#root"}}
}

// Root returns the container node trees are mounted into.
func (d *Document) Root() *Node {
	return d.root
}

// Live returns the number of materialized nodes not yet destroyed.
func (d *Document) Live() int {
	return d.live
}

// Materialize implements vdom.Applier. The node is created detached.
func (d *Document) Materialize(v *vdom.VNode) (vdom.Handle, error) {
	d.live++
	return nodeFromVNode(v), nil
}

// InsertBefore implements vdom.Applier.
func (d *Document) InsertBefore(parent, node, ref vdom.Handle) error {
	p, n, r, err := d.resolve(parent, node, ref)
	if err != nil {
		return err
	}
	if n.parent != nil || n == d.root {
		return fmt.Errorf("%w: insert", ErrAttached)
	}
	if !p.insert(n, r) {
		return fmt.Errorf("%w: insert reference", ErrNotChild)
	}
	return nil
}

// MoveBefore implements vdom.Applier.
func (d *Document) MoveBefore(parent, node, ref vdom.Handle) error {
	p, n, r, err := d.resolve(parent, node, ref)
	if err != nil {
		return err
	}
	if n.parent != p {
		return fmt.Errorf("%w: move", ErrNotChild)
	}
	if r != nil && (r == n || r.parent != p) {
		return fmt.Errorf("%w: move reference", ErrNotChild)
	}
	p.detach(n)
	p.insert(n, r)
	return nil
}

// RemoveChild implements vdom.Applier and destroys the removed subtree.
func (d *Document) RemoveChild(parent, node vdom.Handle) error {
	p, err := d.node(parent)
	if err != nil {
		return err
	}
	n, err := d.node(node)
	if err != nil {
		return err
	}
	if p == nil || n == nil || n.parent != p {
		return fmt.Errorf("%w: remove", ErrNotChild)
	}
	p.detach(n)
	d.destroy(n)
	return nil
}

// RemoveAllChildren implements vdom.Clearer.
func (d *Document) RemoveAllChildren(parent vdom.Handle, nodes []vdom.Handle) error {
	p, err := d.node(parent)
	if err != nil {
		return err
	}
	if p == nil || len(nodes) != len(p.children) {
		return fmt.Errorf("%w: clear of %d nodes", ErrNotChild, len(nodes))
	}
	for _, h := range nodes {
		n, err := d.node(h)
		if err != nil {
			return err
		}
		if n == nil || n.parent != p {
			return fmt.Errorf("%w: clear", ErrNotChild)
		}
	}
	children := p.children
	p.children = nil
	for _, c := range children {
		c.parent = nil
		d.destroy(c)
	}
	return nil
}

// UpdateInPlace implements vdom.Applier.
func (d *Document) UpdateInPlace(prev, next *vdom.VNode, h vdom.Handle) error {
	n, err := d.node(h)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: update of unmounted node", ErrNotChild)
	}
	n.Text = next.Text
	n.Key = next.Key
	n.Attrs = vdom.StringAttrs(next)
	return nil
}

func (d *Document) destroy(n *Node) {
	n.walk(func(c *Node) {
		c.destroyed = true
		d.live--
		if d.OnDestroy != nil {
			d.OnDestroy(c)
		}
	})
}

func (d *Document) resolve(parent, node, ref vdom.Handle) (p, n, r *Node, err error) {
	if p, err = d.node(parent); err != nil {
		return nil, nil, nil, err
	}
	if n, err = d.node(node); err != nil {
		return nil, nil, nil, err
	}
	if r, err = d.node(ref); err != nil {
		return nil, nil, nil, err
	}
	if p == nil || n == nil {
		return nil, nil, nil, fmt.Errorf("%w: nil parent or node", ErrNotChild)
	}
	return p, n, r, nil
}

// node converts a handle, accepting nil.
func (d *Document) node(h vdom.Handle) (*Node, error) {
	if h == nil {
		return nil, nil
	}
	n, ok := h.(*Node)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrForeignHandle, h)
	}
	if n == nil {
		return nil, nil
	}
	if n.destroyed {
		return nil, ErrDestroyed
	}
	return n, nil
}
