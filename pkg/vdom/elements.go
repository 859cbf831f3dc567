package vdom

// createElement creates a new VNode with the given tag and arguments.
// Arguments can be: nil, Attr, []Attr, *VNode, []*VNode, *List, Component, string.
func createElement(tag string, args []any) *VNode {
	node := &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: make(Props),
	}

	var children List
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// Ignore nil (allows conditional attributes)
			continue

		case Attr:
			setAttr(node, v)

		case []Attr:
			for _, a := range v {
				setAttr(node, a)
			}

		case *VNode:
			children.Append(v)

		case []*VNode:
			children.Append(v...)

		case *List:
			children.Concat(v)

		case Component:
			children.Append(&VNode{
				Kind: KindComponent,
				Comp: v,
			})

		case string:
			// Shorthand for text node
			children.Append(Text(v))
		}
	}

	node.Children = children.Seq()
	return node
}

func setAttr(node *VNode, a Attr) {
	if a.Key == "" {
		return
	}
	if a.Key == "key" {
		if s, ok := a.Value.(string); ok {
			node.Key = s
		}
		return
	}
	node.Props[a.Key] = a.Value
}

func Div(args ...any) *VNode     { return createElement("div", args) }
func P(args ...any) *VNode       { return createElement("p", args) }
func Span(args ...any) *VNode    { return createElement("span", args) }
func Ul(args ...any) *VNode      { return createElement("ul", args) }
func Ol(args ...any) *VNode      { return createElement("ol", args) }
func Li(args ...any) *VNode      { return createElement("li", args) }
func Table(args ...any) *VNode   { return createElement("table", args) }
func Tbody(args ...any) *VNode   { return createElement("tbody", args) }
func Tr(args ...any) *VNode      { return createElement("tr", args) }
func Td(args ...any) *VNode      { return createElement("td", args) }
func Section(args ...any) *VNode { return createElement("section", args) }

// El creates an element with an arbitrary tag name.
func El(tag string, args ...any) *VNode {
	return createElement(tag, args)
}
