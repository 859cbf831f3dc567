package vdom

import "strings"

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement   VKind = iota // <div>, <li>, etc.
	KindText                   // Plain text node
	KindFragment               // Grouping without wrapper
	KindComponent              // Nested component
	KindRaw                    // Raw HTML (dangerous)
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	case KindRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// Handle is the live-tree side of a node: a DOM node, a hydration ID, or
// whatever the Applier hands out from Materialize. The reconciler never looks
// inside it; nil is the "no reference" value for InsertBefore/MoveBefore.
type Handle any

// VNode is the virtual tree node.
//
// A node without an explicit Key is keyed by its slot index among its
// siblings. Handle is bound when the node is first materialized and moves to
// the matching node of the next tree on every reconciliation.
type VNode struct {
	Kind     VKind     // Node type
	Tag      string    // Element tag name (e.g., "li")
	Props    Props     // Attributes and event handlers
	Children []*VNode  // Child nodes
	Key      string    // Explicit reconciliation key
	Text     string    // For KindText and KindRaw
	Comp     Component // For KindComponent
	Handle   Handle    // Live handle, owned by at most one VNode
}

// Props holds attributes and event handlers.
type Props map[string]any

// IsInteractive returns true if this node has event handlers.
func (v *VNode) IsInteractive() bool {
	if v == nil || v.Kind != KindElement {
		return false
	}
	for key := range v.Props {
		if isEventHandler(key) {
			return true
		}
	}
	return false
}

// Mounted reports whether the node currently owns a live handle.
func (v *VNode) Mounted() bool {
	return v != nil && v.Handle != nil
}

// Attr represents a single attribute.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// Component is anything that can render to a VNode.
type Component interface {
	Render() *VNode
}

// FuncComponent wraps a render function.
type FuncComponent struct {
	render func() *VNode
}

// Render implements Component.
func (f *FuncComponent) Render() *VNode {
	return f.render()
}

// Func creates a component from a render function.
func Func(render func() *VNode) Component {
	return &FuncComponent{render: render}
}

// isEventHandler returns true if the key is an event handler (starts with "on").
// Case-insensitive so onclick, ONCLICK and onClick are all caught.
func isEventHandler(key string) bool {
	return len(key) > 2 && strings.EqualFold(key[:2], "on")
}
