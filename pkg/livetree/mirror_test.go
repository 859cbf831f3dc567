package livetree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

func TestMirrorFollowsDiff(t *testing.T) {
	gen := vdom.NewHIDGenerator()
	m := NewMirror()

	trees := []*vdom.VNode{
		vdom.Ul(vdom.Class("list"), items("a", "b", "c", "d")),
		vdom.Ul(vdom.Class("list"), items("d", "a", "c", "b")),
		vdom.Ul(vdom.Class("list wide"), items("d", "x", "b")),
		vdom.Ul(vdom.Li(vdom.Key("b"), vdom.Text("only"))),
		vdom.Ol(items("z")),
	}
	shapes := []string{
		"_:ul(a b c d)",
		"_:ul(d a c b)",
		"_:ul(d x b)",
		`_:ul(b("only"))`,
		"_:ol(z)",
	}

	var prev *vdom.VNode
	for i, next := range trees {
		patches, err := vdom.Diff(gen, prev, next)
		require.NoError(t, err, "step %d", i)
		require.NoError(t, m.Apply(patches), "step %d", i)

		assert.Equal(t, shapes[i], Shape(m.Root()), "step %d", i)
		require.NoError(t, EqualChildren(m.Root(), []*vdom.VNode{next}), "step %d", i)
		assert.Len(t, vdom.CollectHIDs(next), m.Len()-1, "step %d", i)
		prev = next
	}
}

func TestMirrorKeepsNodesAcrossMoves(t *testing.T) {
	gen := vdom.NewHIDGenerator()
	m := NewMirror()

	prev := vdom.Div(items("a", "b", "c"))
	patches, err := vdom.Diff(gen, nil, prev)
	require.NoError(t, err)
	require.NoError(t, m.Apply(patches))

	c, ok := m.Lookup(vdom.HIDOf(prev.Children[2]))
	require.True(t, ok)

	next := vdom.Div(items("c", "a", "b"))
	patches, err = vdom.Diff(gen, prev, next)
	require.NoError(t, err)
	require.Len(t, patches, 1)
	require.NoError(t, m.Apply(patches))

	assert.Same(t, c, m.Root().Children()[0].Children()[0])
}

func TestMirrorAttributesAndText(t *testing.T) {
	m := NewMirror()
	require.NoError(t, m.Apply([]vdom.Patch{
		{Op: vdom.PatchCreateNode, HID: "h1", Node: vdom.P(vdom.Class("x"))},
		{Op: vdom.PatchCreateNode, HID: "h2", Node: vdom.Text("hello")},
		{Op: vdom.PatchInsertNode, HID: "h2", ParentID: "h1"},
		{Op: vdom.PatchInsertNode, HID: "h1", ParentID: vdom.RootHID},
		{Op: vdom.PatchSetText, HID: "h2", Value: "bye"},
		{Op: vdom.PatchSetAttr, HID: "h1", Key: "id", Value: "p1"},
		{Op: vdom.PatchRemoveAttr, HID: "h1", Key: "class"},
	}))

	p, _ := m.Lookup("h1")
	assert.Equal(t, map[string]string{"id": "p1"}, p.Attrs)
	assert.Equal(t, `_:p("bye")`, Shape(m.Root()))
}

func TestMirrorRemoveForgetsSubtree(t *testing.T) {
	m := NewMirror()
	require.NoError(t, m.Apply([]vdom.Patch{
		{Op: vdom.PatchCreateNode, HID: "h1", Node: vdom.Div()},
		{Op: vdom.PatchCreateNode, HID: "h2", Node: vdom.Span()},
		{Op: vdom.PatchInsertNode, HID: "h2", ParentID: "h1"},
		{Op: vdom.PatchInsertNode, HID: "h1", ParentID: vdom.RootHID},
	}))
	require.Equal(t, 3, m.Len())

	require.NoError(t, m.Apply([]vdom.Patch{{Op: vdom.PatchRemoveNode, HID: "h1", ParentID: vdom.RootHID}}))
	assert.Equal(t, 1, m.Len())
	_, ok := m.Lookup("h2")
	assert.False(t, ok)
}

func TestMirrorErrors(t *testing.T) {
	tests := []struct {
		name    string
		patches []vdom.Patch
		want    error
	}{
		{
			"unknown target",
			[]vdom.Patch{{Op: vdom.PatchSetText, HID: "h9"}},
			ErrUnknownHID,
		},
		{
			"unknown parent",
			[]vdom.Patch{
				{Op: vdom.PatchCreateNode, HID: "h1", Node: vdom.Div()},
				{Op: vdom.PatchInsertNode, HID: "h1", ParentID: "h7"},
			},
			ErrUnknownHID,
		},
		{
			"duplicate create",
			[]vdom.Patch{
				{Op: vdom.PatchCreateNode, HID: "h1", Node: vdom.Div()},
				{Op: vdom.PatchCreateNode, HID: "h1", Node: vdom.Div()},
			},
			ErrDuplicateHID,
		},
		{
			"create without node",
			[]vdom.Patch{{Op: vdom.PatchCreateNode, HID: "h1"}},
			ErrMissingNode,
		},
		{
			"move detached",
			[]vdom.Patch{
				{Op: vdom.PatchCreateNode, HID: "h1", Node: vdom.Div()},
				{Op: vdom.PatchMoveNode, HID: "h1", ParentID: vdom.RootHID},
			},
			ErrNotChild,
		},
		{
			"unknown op",
			[]vdom.Patch{{Op: vdom.PatchOp(0x7F), HID: vdom.RootHID}},
			ErrUnknownOp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMirror().Apply(tt.patches)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMirrorResetAndRebuild(t *testing.T) {
	gen := vdom.NewHIDGenerator()
	m := NewMirror()

	tree := vdom.Ul(items("a", "b", "c"))
	patches, err := vdom.Diff(gen, nil, tree)
	require.NoError(t, err)
	require.NoError(t, m.Apply(patches))

	// A stray detached node must not survive the reset either.
	require.NoError(t, m.Apply([]vdom.Patch{{Op: vdom.PatchCreateNode, HID: "h99", Node: vdom.Div()}}))

	require.NoError(t, m.Reset())
	assert.Equal(t, 1, m.Len())
	assert.Empty(t, m.Root().Children())
	_, ok := m.Lookup("h99")
	assert.False(t, ok)

	rebuilt, err := vdom.Rebuild(tree)
	require.NoError(t, err)
	require.NoError(t, m.Apply(rebuilt))
	require.NoError(t, EqualChildren(m.Root(), []*vdom.VNode{tree}))
	assert.Equal(t, "_:ul(a b c)", Shape(m.Root()))
}
