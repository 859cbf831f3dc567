package vdom

import (
	"errors"
	"fmt"
	"strings"
)

// fakeNode is a live node of fakeDOM.
type fakeNode struct {
	id        int
	label     string
	parent    *fakeNode
	children  []*fakeNode
	destroyed bool
}

// fakeDOM is a strict in-memory Applier used by the package tests. It
// rejects any primitive that a browser DOM would reject and logs every call.
type fakeDOM struct {
	nextID  int
	ops     []string
	created int
	inserts int
	moves   int
	removes int
	updates int
	failOn  string
}

var errInjected = errors.New("injected failure")

func newFakeDOM() *fakeDOM {
	return &fakeDOM{}
}

func (d *fakeDOM) root() *fakeNode {
	d.nextID++
	return &fakeNode{id: d.nextID, label: "root"}
}

func (d *fakeDOM) resetOps() {
	d.ops = nil
	d.created, d.inserts, d.moves, d.removes, d.updates = 0, 0, 0, 0, 0
}

func labelOf(n *VNode) string {
	switch n.Kind {
	case KindText, KindRaw:
		return fmt.Sprintf("%q", n.Text)
	}
	if k := keyString(n); k != "" {
		return k
	}
	return n.Tag
}

func asFake(h Handle) (*fakeNode, error) {
	if h == nil {
		return nil, nil
	}
	n, ok := h.(*fakeNode)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	if n.destroyed {
		return nil, fmt.Errorf("handle %s used after destroy", n.label)
	}
	return n, nil
}

func refLabel(n *fakeNode) string {
	if n == nil {
		return "-"
	}
	return n.label
}

func (d *fakeDOM) Materialize(node *VNode) (Handle, error) {
	if d.failOn == "materialize" {
		return nil, errInjected
	}
	d.nextID++
	d.created++
	n := &fakeNode{id: d.nextID, label: labelOf(node)}
	return n, nil
}

func (d *fakeDOM) InsertBefore(parent, node, ref Handle) error {
	if d.failOn == "insert" {
		return errInjected
	}
	p, n, r, err := d.triple(parent, node, ref)
	if err != nil {
		return err
	}
	if n.parent != nil {
		return fmt.Errorf("insert of attached node %s", n.label)
	}
	if err := insertAt(p, n, r); err != nil {
		return err
	}
	d.inserts++
	d.ops = append(d.ops, fmt.Sprintf("insert %s before %s", n.label, refLabel(r)))
	return nil
}

func (d *fakeDOM) MoveBefore(parent, node, ref Handle) error {
	if d.failOn == "move" {
		return errInjected
	}
	p, n, r, err := d.triple(parent, node, ref)
	if err != nil {
		return err
	}
	if n.parent != p {
		return fmt.Errorf("move of %s which is not a child of %s", n.label, p.label)
	}
	if r == n {
		return fmt.Errorf("move of %s before itself", n.label)
	}
	detach(n)
	if err := insertAt(p, n, r); err != nil {
		return err
	}
	d.moves++
	d.ops = append(d.ops, fmt.Sprintf("move %s before %s", n.label, refLabel(r)))
	return nil
}

func (d *fakeDOM) RemoveChild(parent, node Handle) error {
	if d.failOn == "remove" {
		return errInjected
	}
	p, err := asFake(parent)
	if err != nil {
		return err
	}
	n, err := asFake(node)
	if err != nil {
		return err
	}
	if n == nil || n.parent != p {
		return fmt.Errorf("remove of a node that is not a child of %s", p.label)
	}
	detach(n)
	destroy(n)
	d.removes++
	d.ops = append(d.ops, "remove "+n.label)
	return nil
}

func (d *fakeDOM) UpdateInPlace(prev, next *VNode, h Handle) error {
	if d.failOn == "update" {
		return errInjected
	}
	n, err := asFake(h)
	if err != nil {
		return err
	}
	if n == nil {
		return errors.New("update of unmounted node")
	}
	n.label = labelOf(next)
	d.updates++
	return nil
}

func (d *fakeDOM) triple(parent, node, ref Handle) (*fakeNode, *fakeNode, *fakeNode, error) {
	p, err := asFake(parent)
	if err != nil {
		return nil, nil, nil, err
	}
	n, err := asFake(node)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := asFake(ref)
	if err != nil {
		return nil, nil, nil, err
	}
	if p == nil || n == nil {
		return nil, nil, nil, errors.New("nil parent or node")
	}
	return p, n, r, nil
}

func insertAt(p, n, ref *fakeNode) error {
	if ref == nil {
		p.children = append(p.children, n)
		n.parent = p
		return nil
	}
	for i, c := range p.children {
		if c == ref {
			p.children = append(p.children, nil)
			copy(p.children[i+1:], p.children[i:])
			p.children[i] = n
			n.parent = p
			return nil
		}
	}
	return fmt.Errorf("reference %s is not a child of %s", ref.label, p.label)
}

func detach(n *fakeNode) {
	p := n.parent
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func destroy(n *fakeNode) {
	n.destroyed = true
	for _, c := range n.children {
		destroy(c)
	}
}

// shape renders the live subtree under n, e.g. "a b(c d)".
func shape(n *fakeNode) string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = c.label
		if len(c.children) > 0 {
			parts[i] += "(" + shape(c) + ")"
		}
	}
	return strings.Join(parts, " ")
}

// clearingDOM adds the bulk removal fast path to fakeDOM.
type clearingDOM struct {
	*fakeDOM
	clears int
}

func (d *clearingDOM) RemoveAllChildren(parent Handle, nodes []Handle) error {
	p, err := asFake(parent)
	if err != nil {
		return err
	}
	if len(nodes) != len(p.children) {
		return fmt.Errorf("clear of %d nodes, parent has %d", len(nodes), len(p.children))
	}
	for _, c := range p.children {
		c.parent = nil
		destroy(c)
	}
	p.children = nil
	d.clears++
	d.ops = append(d.ops, "clear")
	return nil
}
