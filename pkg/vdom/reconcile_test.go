package vdom

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func keyedList(keys ...int) []*VNode {
	nodes := make([]*VNode, len(keys))
	for i, k := range keys {
		nodes[i] = Li(Key(k))
	}
	return nodes
}

func joinKeys(keys []int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Itoa(k)
	}
	return strings.Join(parts, " ")
}

// mounted renders nodes into a fresh root and clears the op log.
func mounted(t *testing.T, dom *fakeDOM, nodes []*VNode) *fakeNode {
	t.Helper()
	root := dom.root()
	if err := Reconcile(dom, root, nil, nodes); err != nil {
		t.Fatalf("initial mount: %v", err)
	}
	dom.resetOps()
	return root
}

func TestReconcileScenarios(t *testing.T) {
	tests := []struct {
		name    string
		old     []int
		new     []int
		inserts int
		moves   int
		removes int
	}{
		{"identical", []int{0, 1, 2}, []int{0, 1, 2}, 0, 0, 0},
		{"reversal", []int{0, 1, 2}, []int{2, 1, 0}, 0, 2, 0},
		{"append", []int{0, 1, 2}, []int{0, 1, 2, 3}, 1, 0, 0},
		{"prepend", []int{998, 999}, []int{0, 998, 999}, 1, 0, 0},
		{"move one back", []int{0, 1, 2, 3, 4}, []int{0, 1, 4, 2, 3}, 0, 1, 0},
		{"remove all", []int{1, 2}, []int{}, 0, 0, 2},
		{"swap ends", []int{1, 2, 3, 4, 5}, []int{5, 2, 3, 4, 1}, 0, 2, 0},
		{"rotate left", []int{1, 2, 3, 4, 5}, []int{2, 3, 4, 5, 1}, 0, 1, 0},
		{"rotate right", []int{1, 2, 3, 4, 5}, []int{5, 1, 2, 3, 4}, 0, 1, 0},
		{"insert middle", []int{1, 2, 4, 5}, []int{1, 2, 3, 4, 5}, 1, 0, 0},
		{"remove middle", []int{1, 2, 3, 4, 5}, []int{1, 2, 4, 5}, 0, 0, 1},
		{"replace middle", []int{1, 2, 3, 4}, []int{1, 7, 8, 4}, 2, 0, 2},
		{"disjoint", []int{1, 2, 3}, []int{4, 5, 6}, 3, 0, 3},
		{"from empty", []int{}, []int{1, 2, 3}, 3, 0, 0},
		{"move and insert", []int{1, 2, 3, 4, 5, 6}, []int{6, 1, 9, 2, 3, 4, 5}, 1, 1, 0},
		{
			"large shuffle",
			[]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			[]int{0, 8, 2, 3, 11, 4, 5, 1, 7, 9},
			1, 2, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dom := newFakeDOM()
			prev := keyedList(tt.old...)
			root := mounted(t, dom, prev)

			if err := Reconcile(dom, root, prev, keyedList(tt.new...)); err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if got, want := shape(root), joinKeys(tt.new); got != want {
				t.Errorf("children = %q, want %q", got, want)
			}
			if dom.inserts != tt.inserts || dom.moves != tt.moves || dom.removes != tt.removes {
				t.Errorf("inserts/moves/removes = %d/%d/%d, want %d/%d/%d (ops %v)",
					dom.inserts, dom.moves, dom.removes, tt.inserts, tt.moves, tt.removes, dom.ops)
			}
		})
	}
}

func TestReconcileMoveTarget(t *testing.T) {
	dom := newFakeDOM()
	prev := keyedList(0, 1, 2, 3, 4)
	root := mounted(t, dom, prev)

	if err := Reconcile(dom, root, prev, keyedList(0, 1, 4, 2, 3)); err != nil {
		t.Fatal(err)
	}
	want := []string{"move 4 before 2"}
	if strings.Join(dom.ops, ";") != strings.Join(want, ";") {
		t.Errorf("ops = %v, want %v", dom.ops, want)
	}
}

func TestReconcilePrependReference(t *testing.T) {
	dom := newFakeDOM()
	prev := keyedList(998, 999)
	root := mounted(t, dom, prev)

	if err := Reconcile(dom, root, prev, keyedList(0, 998, 999)); err != nil {
		t.Fatal(err)
	}
	if len(dom.ops) != 1 || dom.ops[0] != "insert 0 before 998" {
		t.Errorf("ops = %v, want [insert 0 before 998]", dom.ops)
	}
}

func TestReconcileIdentical(t *testing.T) {
	dom := newFakeDOM()
	prev := keyedList(0, 1, 2)
	root := mounted(t, dom, prev)

	if err := Reconcile(dom, root, prev, prev); err != nil {
		t.Fatal(err)
	}
	if len(dom.ops) != 0 {
		t.Errorf("ops = %v, want none", dom.ops)
	}
	if dom.updates != 3 {
		t.Errorf("updates = %d, want 3", dom.updates)
	}
	for i, n := range prev {
		if n.Handle == nil {
			t.Errorf("node %d lost its handle", i)
		}
	}
}

func TestReconcilePreservesIdentity(t *testing.T) {
	dom := newFakeDOM()
	prev := keyedList(1, 2, 3, 4, 5, 6, 7)
	root := mounted(t, dom, prev)

	before := make(map[string]Handle)
	for _, n := range prev {
		before[n.Key] = n.Handle
	}

	next := keyedList(7, 3, 9, 1, 5)
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}

	for _, n := range next {
		h, ok := before[n.Key]
		if !ok {
			continue
		}
		if n.Handle != h {
			t.Errorf("key %s: handle changed", n.Key)
		}
	}
	if dom.created != 1 {
		t.Errorf("materialized %d nodes, want 1", dom.created)
	}
}

func TestReconcileDestroysRemoved(t *testing.T) {
	dom := newFakeDOM()
	prev := []*VNode{
		Li(Key("a")),
		Li(Key("b"), Span(Key("b1")), Span(Key("b2"))),
		Li(Key("c")),
		Li(Key("d")),
	}
	root := mounted(t, dom, prev)

	removed := prev[1].Handle.(*fakeNode)
	inner := prev[1].Children[0].Handle.(*fakeNode)

	next := []*VNode{Li(Key("d")), Li(Key("a")), Li(Key("c"))}
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}

	if got := shape(root); got != "d a c" {
		t.Errorf("children = %q, want %q", got, "d a c")
	}
	if dom.removes != 1 {
		t.Errorf("removes = %d, want 1", dom.removes)
	}
	if !removed.destroyed || !inner.destroyed {
		t.Error("removed subtree was not destroyed")
	}
	if prev[1].Handle != nil || prev[1].Children[0].Handle != nil {
		t.Error("removed nodes still own handles")
	}
	for _, op := range dom.ops[1:] {
		if strings.Contains(op, " b ") || strings.HasSuffix(op, " b") {
			t.Errorf("removed node used after removal: %s", op)
		}
	}
}

func TestReconcileNested(t *testing.T) {
	dom := newFakeDOM()
	row := func(key string, cells ...int) *VNode {
		return Tr(Key(key), keyedList(cells...))
	}
	prev := []*VNode{row("r1", 1, 2, 3), row("r2", 4, 5), row("r3", 6)}
	root := mounted(t, dom, prev)
	cell := prev[0].Children[2].Handle

	next := []*VNode{row("r3", 6, 7), row("r1", 3, 1, 2), row("r2")}
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}

	if got, want := shape(root), "r3(6 7) r1(3 1 2) r2"; got != want {
		t.Errorf("tree = %q, want %q", got, want)
	}
	if next[1].Children[0].Handle != cell {
		t.Error("nested keyed child lost its handle")
	}
}

func TestReconcileDeepNesting(t *testing.T) {
	var build func(depth int, keys []int) []*VNode
	build = func(depth int, keys []int) []*VNode {
		nodes := keyedList(keys...)
		if depth > 0 {
			for _, n := range nodes {
				n.Children = build(depth-1, keys)
			}
		}
		return nodes
	}

	dom := newFakeDOM()
	prev := build(3, []int{1, 2, 3})
	root := mounted(t, dom, prev)

	next := build(3, []int{3, 2, 1})
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}

	var check func(n *fakeNode, depth int)
	check = func(n *fakeNode, depth int) {
		if got := len(n.children); got != 3 {
			t.Fatalf("depth %d: %d children", depth, got)
		}
		for i, c := range n.children {
			if want := strconv.Itoa(3 - i); c.label != want {
				t.Errorf("depth %d: child %d = %s, want %s", depth, i, c.label, want)
			}
			if depth > 0 {
				check(c, depth-1)
			}
		}
	}
	check(root, 3)
	if dom.created != 0 || dom.removes != 0 {
		t.Errorf("created %d removed %d, want nothing recreated", dom.created, dom.removes)
	}
}

func TestReconcileTypeCollision(t *testing.T) {
	dom := newFakeDOM()
	prev := []*VNode{Li(Key("a")), Li(Key("b"))}
	root := mounted(t, dom, prev)
	old := prev[0].Handle

	next := []*VNode{Div(Key("a")), Li(Key("b"))}
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}
	if next[0].Handle == old {
		t.Error("node of a different type reused the handle")
	}
	if dom.inserts != 1 || dom.removes != 1 || dom.updates != 1 {
		t.Errorf("inserts/removes/updates = %d/%d/%d, want 1/1/1", dom.inserts, dom.removes, dom.updates)
	}
}

func TestReconcileImplicitKeys(t *testing.T) {
	dom := newFakeDOM()
	prev := []*VNode{Text("one"), Text("two")}
	root := mounted(t, dom, prev)
	h := prev[1].Handle

	next := []*VNode{Text("one"), Text("deux"), Text("three")}
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}
	if got, want := shape(root), `"one" "deux" "three"`; got != want {
		t.Errorf("children = %s, want %s", got, want)
	}
	if next[1].Handle != h {
		t.Error("text at the same slot was not updated in place")
	}
	if dom.inserts != 1 {
		t.Errorf("inserts = %d, want 1", dom.inserts)
	}
}

func TestReconcileMixedKeys(t *testing.T) {
	dom := newFakeDOM()
	prev := []*VNode{Li(Key("x")), Li(), Li(Key("y")), P()}
	root := mounted(t, dom, prev)

	next := []*VNode{Li(), Li(Key("y")), P(), Li(Key("x")), Li()}
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}
	if got, want := shape(root), "li y p x li"; got != want {
		t.Errorf("children = %q, want %q", got, want)
	}
	for i, n := range next {
		if n.Handle == nil {
			t.Errorf("node %d has no handle", i)
		}
	}
}

func TestReconcileDuplicateKeys(t *testing.T) {
	tests := []struct {
		name string
		old  []int
		new  []int
	}{
		{"small", []int{1, 1, 2}, []int{2, 1, 1}},
		{"grow", []int{1, 2}, []int{2, 2, 1, 1}},
		{"shrink", []int{3, 3, 3, 1}, []int{1, 3}},
		{"large", []int{1, 2, 3, 4, 5, 5, 6, 7}, []int{7, 5, 6, 5, 4, 3, 2, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dom := newFakeDOM()
			prev := keyedList(tt.old...)
			root := mounted(t, dom, prev)

			if err := Reconcile(dom, root, prev, keyedList(tt.new...)); err != nil {
				t.Fatal(err)
			}
			if got, want := shape(root), joinKeys(tt.new); got != want {
				t.Errorf("children = %q, want %q", got, want)
			}
		})
	}
}

func TestReconcileSkipsNil(t *testing.T) {
	dom := newFakeDOM()
	prev := []*VNode{Li(Key("a")), nil, Li(Key("b"))}
	root := mounted(t, dom, prev)

	next := []*VNode{nil, Li(Key("b")), Li(Key("a")), nil}
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Fatal(err)
	}
	if got := shape(root); got != "b a" {
		t.Errorf("children = %q, want %q", got, "b a")
	}
}

func TestReconcileBulkRemoval(t *testing.T) {
	t.Run("disjoint uses clearer", func(t *testing.T) {
		dom := &clearingDOM{fakeDOM: newFakeDOM()}
		prev := keyedList(1, 2, 3)
		root := dom.root()
		if err := Reconcile(dom, root, nil, prev); err != nil {
			t.Fatal(err)
		}
		dom.resetOps()

		if err := Reconcile(dom, root, prev, keyedList(4, 5)); err != nil {
			t.Fatal(err)
		}
		if dom.clears != 1 || dom.removes != 0 || dom.inserts != 2 {
			t.Errorf("clears/removes/inserts = %d/%d/%d, want 1/0/2", dom.clears, dom.removes, dom.inserts)
		}
		if got := shape(root); got != "4 5" {
			t.Errorf("children = %q", got)
		}
		for _, n := range prev {
			if n.Handle != nil {
				t.Error("cleared node still owns a handle")
			}
		}
	})

	t.Run("disabled", func(t *testing.T) {
		dom := &clearingDOM{fakeDOM: newFakeDOM()}
		prev := keyedList(1, 2, 3)
		root := dom.root()
		r := New(dom, WithoutBulkRemoval())
		if err := r.Reconcile(root, nil, prev); err != nil {
			t.Fatal(err)
		}
		dom.resetOps()

		if err := r.Reconcile(root, prev, keyedList(4, 5)); err != nil {
			t.Fatal(err)
		}
		if dom.clears != 0 || dom.removes != 3 {
			t.Errorf("clears/removes = %d/%d, want 0/3", dom.clears, dom.removes)
		}
	})

	t.Run("partial overlap keeps single removals", func(t *testing.T) {
		for _, next := range [][]int{{2, 9}, {1, 8, 9}, {8, 9, 3}} {
			dom := &clearingDOM{fakeDOM: newFakeDOM()}
			prev := keyedList(1, 2, 3)
			root := dom.root()
			if err := Reconcile(dom, root, nil, prev); err != nil {
				t.Fatal(err)
			}
			dom.resetOps()

			if err := Reconcile(dom, root, prev, keyedList(next...)); err != nil {
				t.Fatal(err)
			}
			if dom.clears != 0 {
				t.Errorf("%v: clearer used although a node matched", next)
			}
			if got, want := shape(root), joinKeys(next); got != want {
				t.Errorf("%v: children = %q, want %q", next, got, want)
			}
		}
	})
}

func TestReconcileErrorPropagates(t *testing.T) {
	for _, op := range []string{"materialize", "insert", "move", "remove", "update"} {
		t.Run(op, func(t *testing.T) {
			dom := newFakeDOM()
			prev := keyedList(1, 2, 3, 4)
			root := mounted(t, dom, prev)

			dom.failOn = op
			err := Reconcile(dom, root, prev, keyedList(4, 2, 9, 1))
			if !errors.Is(err, errInjected) {
				t.Errorf("err = %v, want injected failure", err)
			}
		})
	}
}

func TestPatch(t *testing.T) {
	t.Run("match updates in place", func(t *testing.T) {
		dom := newFakeDOM()
		root := dom.root()
		r := New(dom)
		prev := Div(Class("a"), Text("hi"))
		if err := r.Patch(root, nil, prev); err != nil {
			t.Fatal(err)
		}
		dom.resetOps()

		next := Div(Class("b"), Text("there"))
		if err := r.Patch(root, prev, next); err != nil {
			t.Fatal(err)
		}
		if next.Handle == nil || prev.Handle != nil {
			t.Error("handle was not handed over")
		}
		if len(dom.ops) != 0 || dom.updates != 2 {
			t.Errorf("ops = %v updates = %d, want no ops and 2 updates", dom.ops, dom.updates)
		}
		if got := shape(root); got != `div("there")` {
			t.Errorf("tree = %s", got)
		}
	})

	t.Run("mismatch replaces", func(t *testing.T) {
		dom := newFakeDOM()
		root := dom.root()
		r := New(dom)
		prev := Li()
		if err := r.Patch(root, nil, prev); err != nil {
			t.Fatal(err)
		}
		dom.resetOps()

		if err := r.Patch(root, prev, Div()); err != nil {
			t.Fatal(err)
		}
		want := "insert div before li;remove li"
		if got := strings.Join(dom.ops, ";"); got != want {
			t.Errorf("ops = %s, want %s", got, want)
		}
	})

	t.Run("nil sides", func(t *testing.T) {
		dom := newFakeDOM()
		root := dom.root()
		r := New(dom)
		if err := r.Patch(root, nil, nil); err != nil {
			t.Fatal(err)
		}
		node := P()
		if err := r.Patch(root, nil, node); err != nil {
			t.Fatal(err)
		}
		if err := r.Patch(root, node, nil); err != nil {
			t.Fatal(err)
		}
		if len(root.children) != 0 || dom.inserts != 1 || dom.removes != 1 {
			t.Errorf("children %d inserts %d removes %d", len(root.children), dom.inserts, dom.removes)
		}
	})
}

func TestCounter(t *testing.T) {
	dom := newFakeDOM()
	c := NewCounter(dom)
	prev := keyedList(1, 2, 3)
	root := dom.root()
	if err := Reconcile(c, root, nil, prev); err != nil {
		t.Fatal(err)
	}
	if c.Stats.Materialized != 3 || c.Stats.Inserted != 3 {
		t.Errorf("mount stats = %v", c.Stats)
	}
	c.Reset()

	if err := Reconcile(c, root, prev, keyedList(3, 1)); err != nil {
		t.Fatal(err)
	}
	want := Stats{Moved: 1, Removed: 1, Updated: 2}
	if c.Stats != want {
		t.Errorf("stats = %v, want %v", c.Stats, want)
	}
	if c.Stats.Structural() != 2 {
		t.Errorf("structural = %d, want 2", c.Stats.Structural())
	}
}

func TestCounterFallsBackToRemoveChild(t *testing.T) {
	dom := newFakeDOM()
	c := NewCounter(dom)
	prev := keyedList(1, 2)
	root := dom.root()
	if err := Reconcile(c, root, nil, prev); err != nil {
		t.Fatal(err)
	}
	c.Reset()

	if err := Reconcile(c, root, prev, keyedList(3)); err != nil {
		t.Fatal(err)
	}
	if c.Stats.Removed != 2 || dom.removes != 2 {
		t.Errorf("removed = %d (dom %d), want 2", c.Stats.Removed, dom.removes)
	}
}
