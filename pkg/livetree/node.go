package livetree

import (
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Node is a live node. It is owned by the Document that created it and
// mutated only through the Document's primitives.
type Node struct {
	Kind  vdom.VKind
	Tag   string
	Text  string
	Key   string
	Attrs map[string]string

	// ID is the hydration ID of the node when it belongs to a Mirror.
	ID string

	parent    *Node
	children  []*Node
	destroyed bool
}

// Parent returns the node's parent, or nil when detached.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the live children in order. The slice must not be
// modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Destroyed reports whether the node has been removed from the tree.
func (n *Node) Destroyed() bool {
	return n.destroyed
}

func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

func (n *Node) insert(child, ref *Node) bool {
	if ref == nil {
		n.children = append(n.children, child)
		child.parent = n
		return true
	}
	i := n.indexOf(ref)
	if i < 0 {
		return false
	}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
	child.parent = n
	return true
}

func (n *Node) detach(child *Node) {
	if i := n.indexOf(child); i >= 0 {
		n.children = append(n.children[:i], n.children[i+1:]...)
	}
	child.parent = nil
}

// walk visits n and its subtree in document order.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

func nodeFromVNode(v *vdom.VNode) *Node {
	return &Node{
		Kind:  v.Kind,
		Tag:   v.Tag,
		Text:  v.Text,
		Key:   v.Key,
		Attrs: vdom.StringAttrs(v),
	}
}
