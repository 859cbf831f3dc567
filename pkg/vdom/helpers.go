package vdom

import "fmt"

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{
		Kind: KindText,
		Text: content,
	}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

// Raw creates an unescaped HTML node.
func Raw(html string) *VNode {
	return &VNode{
		Kind: KindRaw,
		Text: html,
	}
}

// Fragment groups children without a wrapper element.
func Fragment(children ...any) *VNode {
	node := createElement("", children)
	node.Kind = KindFragment
	node.Props = nil
	return node
}

// Keyed sets the explicit key of node and returns it.
func Keyed(key any, node *VNode) *VNode {
	if node != nil {
		node.Key = fmt.Sprintf("%v", key)
	}
	return node
}

// Range maps items to nodes, dropping nil results.
func Range[T any](items []T, fn func(item T, index int) *VNode) []*VNode {
	result := make([]*VNode, 0, len(items))
	for i, item := range items {
		if node := fn(item, i); node != nil {
			result = append(result, node)
		}
	}
	return result
}

// Key creates a key attribute for reconciliation.
// The key is converted to a string using fmt.Sprintf.
func Key(key any) Attr {
	return Attr{Key: "key", Value: fmt.Sprintf("%v", key)}
}

// ID sets the id attribute.
func ID(id string) Attr { return Attr{Key: "id", Value: id} }

// Class sets the class attribute.
func Class(class string) Attr { return Attr{Key: "class", Value: class} }

// Attribute sets an arbitrary attribute.
func Attribute(key string, value any) Attr { return Attr{Key: key, Value: value} }

// Clone returns a deep copy of the tree without live handles.
func Clone(node *VNode) *VNode {
	if node == nil {
		return nil
	}
	c := *node
	c.Handle = nil
	if node.Props != nil {
		c.Props = make(Props, len(node.Props))
		for k, v := range node.Props {
			c.Props[k] = v
		}
	}
	if node.Children != nil {
		c.Children = make([]*VNode, len(node.Children))
		for i, child := range node.Children {
			c.Children[i] = Clone(child)
		}
	}
	return &c
}

// CloneAll clones every node of a sequence.
func CloneAll(nodes []*VNode) []*VNode {
	out := make([]*VNode, len(nodes))
	for i, n := range nodes {
		out[i] = Clone(n)
	}
	return out
}
