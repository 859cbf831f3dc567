package livetree

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Shape renders the children of n in tree notation: keyed nodes by key,
// unkeyed ones as "_", a ":tag" suffix for tags other than li, quoted text,
// and nested children in parentheses. For example:
//
//	a b:span(c d) _:p "text"
func Shape(n *Node) string {
	var sb strings.Builder
	writeChildren(&sb, n)
	return sb.String()
}

func writeChildren(sb *strings.Builder, n *Node) {
	for i, c := range n.children {
		if i > 0 {
			sb.WriteByte(' ')
		}
		writeNode(sb, c)
	}
}

func writeNode(sb *strings.Builder, n *Node) {
	switch n.Kind {
	case vdom.KindText:
		sb.WriteString(strconv.Quote(n.Text))
		return
	case vdom.KindRaw:
		sb.WriteByte('!')
		sb.WriteString(strconv.Quote(n.Text))
		return
	}

	if n.Key != "" {
		sb.WriteString(n.Key)
	} else {
		sb.WriteByte('_')
	}
	switch {
	case n.Kind != vdom.KindElement:
		sb.WriteString(":#")
		sb.WriteString(strings.ToLower(n.Kind.String()))
	case n.Tag != "li":
		sb.WriteByte(':')
		sb.WriteString(n.Tag)
	}
	if len(n.children) > 0 {
		sb.WriteByte('(')
		writeChildren(sb, n)
		sb.WriteByte(')')
	}
}

// Equal checks the live node n against the virtual node v, recursively. It
// returns nil when they agree and an error naming the first difference
// otherwise. When v is bound to a *Node handle, it must be n itself.
func Equal(n *Node, v *vdom.VNode) error {
	return equal(n, v, "")
}

// EqualChildren checks the live children of n against vs.
func EqualChildren(n *Node, vs []*vdom.VNode) error {
	return equalChildren(n, vdom.SeqOf(vs), "")
}

func equal(n *Node, v *vdom.VNode, path string) error {
	switch {
	case n == nil || v == nil:
		if n == nil && v == nil {
			return nil
		}
		return fmt.Errorf("%s: one side is nil", pathOrRoot(path))
	case n.destroyed:
		return fmt.Errorf("%s: %w", pathOrRoot(path), ErrDestroyed)
	case n.Kind != v.Kind || n.Tag != v.Tag:
		return fmt.Errorf("%s: %s %q, want %s %q", pathOrRoot(path), n.Kind, n.Tag, v.Kind, v.Tag)
	case n.Text != v.Text:
		return fmt.Errorf("%s: text %q, want %q", pathOrRoot(path), n.Text, v.Text)
	case n.Key != v.Key:
		return fmt.Errorf("%s: key %q, want %q", pathOrRoot(path), n.Key, v.Key)
	}
	if h, ok := v.Handle.(*Node); ok && h != n {
		return fmt.Errorf("%s: bound to a different live node", pathOrRoot(path))
	}
	if want := vdom.StringAttrs(v); !maps.Equal(n.Attrs, want) {
		return fmt.Errorf("%s: attrs %v, want %v", pathOrRoot(path), n.Attrs, want)
	}
	return equalChildren(n, vdom.SeqOf(v.Children), path)
}

func equalChildren(n *Node, vs vdom.Seq, path string) error {
	if len(n.children) != len(vs) {
		return fmt.Errorf("%s: %d children, want %d", pathOrRoot(path), len(n.children), len(vs))
	}
	for i, c := range n.children {
		if c.parent != n {
			return fmt.Errorf("%s/%d: broken parent link", path, i)
		}
		if err := equal(c, vs[i], path+"/"+strconv.Itoa(i)); err != nil {
			return err
		}
	}
	return nil
}

func pathOrRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
