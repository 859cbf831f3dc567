package vdom

import (
	"reflect"
	"strconv"
)

// NodeKey is the identity of a node among its siblings.
//
// Explicit keys come from the application (VNode.Key); implicit keys are the
// node's slot index. The explicit flag is part of the value, so the two key
// spaces never compare equal and a NodeKey can be used directly as a map key.
type NodeKey struct {
	name     string
	slot     int
	explicit bool
}

// KeyOf returns the identity key of node at the given slot of its sequence.
func KeyOf(node *VNode, slot int) NodeKey {
	if k := keyString(node); k != "" {
		return NodeKey{name: k, explicit: true}
	}
	return NodeKey{slot: slot}
}

// Explicit reports whether the key was supplied by the application.
func (k NodeKey) Explicit() bool {
	return k.explicit
}

// String returns the key for display: the key itself, or "#<slot>".
func (k NodeKey) String() string {
	if k.explicit {
		return k.name
	}
	return "#" + strconv.Itoa(k.slot)
}

// Matches reports whether a (at aSlot of the old sequence) and b (at bSlot of
// the new sequence) are the same logical node: equal keys under the same
// keying mode and the same type. Matching nodes are updated in place; a key
// collision between different types is a remove plus insert.
func Matches(a *VNode, aSlot int, b *VNode, bSlot int) bool {
	if a == nil || b == nil {
		return false
	}
	return KeyOf(a, aSlot) == KeyOf(b, bSlot) && SameType(a, b)
}

// SameType reports whether two nodes can share one live handle: same kind,
// same tag, and for components the same concrete component type.
func SameType(a, b *VNode) bool {
	if a.Kind != b.Kind || a.Tag != b.Tag {
		return false
	}
	if a.Kind == KindComponent {
		return reflect.TypeOf(a.Comp) == reflect.TypeOf(b.Comp)
	}
	return true
}

// keyString extracts the explicit key from a node, falling back to the "key"
// prop for nodes built without the Key attribute helper.
func keyString(node *VNode) string {
	if node == nil {
		return ""
	}
	if node.Key != "" {
		return node.Key
	}
	if node.Props == nil {
		return ""
	}
	if key, ok := node.Props["key"].(string); ok {
		return key
	}
	return ""
}

// HasKeys returns true if any child has an explicit key.
func HasKeys(children []*VNode) bool {
	for _, child := range children {
		if keyString(child) != "" {
			return true
		}
	}
	return false
}
