package livetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

func items(keys ...string) []*vdom.VNode {
	nodes := make([]*vdom.VNode, len(keys))
	for i, k := range keys {
		nodes[i] = vdom.Li(vdom.Key(k))
	}
	return nodes
}

func TestDocumentReconcile(t *testing.T) {
	doc := New()
	steps := [][]*vdom.VNode{
		items("a", "b", "c"),
		items("c", "a", "b"),
		items("c", "d", "b", "e"),
		{vdom.Li(vdom.Key("e"), vdom.Span(vdom.Key("x")), vdom.Text("hi")), vdom.P(), vdom.Li(vdom.Key("c"))},
		{vdom.P(), vdom.Li(vdom.Key("c")), vdom.Li(vdom.Key("e"), vdom.Text("hi"), vdom.Span(vdom.Key("x")))},
		nil,
	}

	var prev []*vdom.VNode
	for i, next := range steps {
		require.NoError(t, vdom.Reconcile(doc, doc.Root(), prev, next), "step %d", i)
		require.NoError(t, EqualChildren(doc.Root(), next), "step %d", i)
		prev = next
	}
	assert.Equal(t, 0, doc.Live())
	assert.Empty(t, doc.Root().Children())
}

func TestDocumentShape(t *testing.T) {
	doc := New()
	tree := []*vdom.VNode{
		vdom.Li(vdom.Key("a")),
		vdom.Span(vdom.Key("b"), vdom.Li(vdom.Key("c")), vdom.Li(vdom.Key("d"))),
		vdom.P(),
		vdom.Text("text"),
	}
	require.NoError(t, vdom.Reconcile(doc, doc.Root(), nil, tree))
	assert.Equal(t, `a b:span(c d) _:p "text"`, Shape(doc.Root()))
	assert.Equal(t, 6, doc.Live())
}

func TestDocumentUpdateInPlace(t *testing.T) {
	doc := New()
	prev := []*vdom.VNode{vdom.Div(vdom.Class("a"), vdom.Text("one"))}
	require.NoError(t, vdom.Reconcile(doc, doc.Root(), nil, prev))
	div := prev[0].Handle.(*Node)

	next := []*vdom.VNode{vdom.Div(vdom.Class("b"), vdom.ID("x"), vdom.Text("two"))}
	require.NoError(t, vdom.Reconcile(doc, doc.Root(), prev, next))

	assert.Same(t, div, next[0].Handle)
	assert.Equal(t, map[string]string{"class": "b", "id": "x"}, div.Attrs)
	assert.Equal(t, "two", div.Children()[0].Text)
	require.NoError(t, Equal(div, next[0]))
}

func TestDocumentBulkRemoval(t *testing.T) {
	doc := New()
	var destroyed []string
	doc.OnDestroy = func(n *Node) { destroyed = append(destroyed, n.Key) }

	prev := items("a", "b", "c")
	require.NoError(t, vdom.Reconcile(doc, doc.Root(), nil, prev))
	handles := []*Node{prev[0].Handle.(*Node), prev[1].Handle.(*Node), prev[2].Handle.(*Node)}

	next := items("x", "y")
	require.NoError(t, vdom.Reconcile(doc, doc.Root(), prev, next))

	assert.Equal(t, []string{"a", "b", "c"}, destroyed)
	for _, h := range handles {
		assert.True(t, h.Destroyed())
		assert.Nil(t, h.Parent())
	}
	assert.Equal(t, "x y", Shape(doc.Root()))
	assert.Equal(t, 2, doc.Live())
}

func TestDocumentRejectsInvalidPrimitives(t *testing.T) {
	newChild := func(doc *Document) *Node {
		h, err := doc.Materialize(vdom.Li())
		require.NoError(t, err)
		return h.(*Node)
	}

	t.Run("insert attached", func(t *testing.T) {
		doc := New()
		n := newChild(doc)
		require.NoError(t, doc.InsertBefore(doc.Root(), n, nil))
		assert.ErrorIs(t, doc.InsertBefore(doc.Root(), n, nil), ErrAttached)
	})

	t.Run("insert before stranger", func(t *testing.T) {
		doc := New()
		n, stranger := newChild(doc), newChild(doc)
		assert.ErrorIs(t, doc.InsertBefore(doc.Root(), n, stranger), ErrNotChild)
	})

	t.Run("move detached", func(t *testing.T) {
		doc := New()
		n := newChild(doc)
		assert.ErrorIs(t, doc.MoveBefore(doc.Root(), n, nil), ErrNotChild)
	})

	t.Run("move before itself", func(t *testing.T) {
		doc := New()
		n := newChild(doc)
		require.NoError(t, doc.InsertBefore(doc.Root(), n, nil))
		assert.ErrorIs(t, doc.MoveBefore(doc.Root(), n, n), ErrNotChild)
	})

	t.Run("remove twice", func(t *testing.T) {
		doc := New()
		n := newChild(doc)
		require.NoError(t, doc.InsertBefore(doc.Root(), n, nil))
		require.NoError(t, doc.RemoveChild(doc.Root(), n))
		assert.ErrorIs(t, doc.RemoveChild(doc.Root(), n), ErrDestroyed)
	})

	t.Run("foreign handle", func(t *testing.T) {
		doc := New()
		assert.ErrorIs(t, doc.InsertBefore(doc.Root(), "h1", nil), ErrForeignHandle)
	})

	t.Run("clear with wrong count", func(t *testing.T) {
		doc := New()
		n := newChild(doc)
		require.NoError(t, doc.InsertBefore(doc.Root(), n, nil))
		assert.ErrorIs(t, doc.RemoveAllChildren(doc.Root(), nil), ErrNotChild)
	})
}

func TestEqualReportsDifferences(t *testing.T) {
	doc := New()
	tree := []*vdom.VNode{vdom.Ul(vdom.Li(vdom.Key("a")), vdom.Li(vdom.Key("b")))}
	require.NoError(t, vdom.Reconcile(doc, doc.Root(), nil, tree))

	require.NoError(t, EqualChildren(doc.Root(), tree))

	other := []*vdom.VNode{vdom.Ul(vdom.Li(vdom.Key("a")), vdom.Li(vdom.Key("c")))}
	err := EqualChildren(doc.Root(), other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/0/1")

	assert.Error(t, EqualChildren(doc.Root(), nil))
}
