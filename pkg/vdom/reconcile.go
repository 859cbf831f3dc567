package vdom

// Remainders at or under these sizes are matched with a nested scan instead
// of a key index.
const (
	smallRemainder     = 4
	smallRemainderArea = 16
)

// Reconciler synchronizes a live tree with successive virtual trees through
// an Applier.
//
// A Reconciler keeps no state between calls, but a pass is not reentrant:
// callers must not reconcile overlapping subtrees concurrently.
type Reconciler struct {
	applier Applier
	clearer Clearer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithoutBulkRemoval disables the remove-all fast path even when the applier
// implements Clearer, so every removed node gets its own RemoveChild call.
func WithoutBulkRemoval() Option {
	return func(r *Reconciler) {
		r.clearer = nil
	}
}

// New creates a Reconciler that edits the live tree through a.
func New(a Applier, opts ...Option) *Reconciler {
	r := &Reconciler{applier: a}
	if c, ok := a.(Clearer); ok {
		r.clearer = c
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile transforms the children of parent from prev into next using a.
func Reconcile(a Applier, parent Handle, prev, next []*VNode) error {
	return New(a).Reconcile(parent, prev, next)
}

// Reconcile transforms the live children of parent, currently described by
// prev, into next. After it returns nil the live children of parent are in
// next's order and every node of next owns a handle.
//
// Nodes of prev that match a node of next hand their handle over; the rest
// are removed and lose theirs.
func (r *Reconciler) Reconcile(parent Handle, prev, next []*VNode) error {
	return r.children(parent, SeqOf(prev), SeqOf(next))
}

// Patch syncs a single child of parent. Matching nodes are updated in place;
// otherwise next is mounted in front of prev and prev is removed.
func (r *Reconciler) Patch(parent Handle, prev, next *VNode) error {
	switch {
	case prev == nil && next == nil:
		return nil
	case prev == nil:
		return r.Mount(parent, next, nil)
	case next == nil:
		return r.Unmount(parent, prev)
	case Matches(prev, 0, next, 0):
		return r.sync(prev, next)
	}

	if err := r.create(next); err != nil {
		return err
	}
	if err := r.applier.InsertBefore(parent, next.Handle, prev.Handle); err != nil {
		return err
	}
	return r.Unmount(parent, prev)
}

// Mount materializes node and its subtree and inserts it into parent before
// ref (nil appends).
func (r *Reconciler) Mount(parent Handle, node *VNode, ref Handle) error {
	if err := r.create(node); err != nil {
		return err
	}
	return r.applier.InsertBefore(parent, node.Handle, ref)
}

// Unmount removes node from parent and releases the handles of its subtree.
func (r *Reconciler) Unmount(parent Handle, node *VNode) error {
	if err := r.applier.RemoveChild(parent, node.Handle); err != nil {
		return err
	}
	release(node)
	return nil
}

// create materializes node and mounts its children into the detached handle.
func (r *Reconciler) create(node *VNode) error {
	h, err := r.applier.Materialize(node)
	if err != nil {
		return err
	}
	node.Handle = h
	for _, child := range SeqOf(node.Children) {
		if err := r.Mount(h, child, nil); err != nil {
			return err
		}
	}
	return nil
}

// sync moves the handle from prev to next, updates the payload and recurses
// into the pair's children.
func (r *Reconciler) sync(prev, next *VNode) error {
	h := prev.Handle
	prev.Handle = nil
	next.Handle = h
	if err := r.applier.UpdateInPlace(prev, next, h); err != nil {
		return err
	}
	return r.children(h, SeqOf(prev.Children), SeqOf(next.Children))
}

func (r *Reconciler) children(parent Handle, a, b Seq) error {
	aStart, bStart := 0, 0
	aEnd, bEnd := len(a)-1, len(b)-1

	// Common prefix.
	for aStart <= aEnd && bStart <= bEnd && Matches(a[aStart], aStart, b[bStart], bStart) {
		if err := r.sync(a[aStart], b[bStart]); err != nil {
			return err
		}
		aStart++
		bStart++
	}

	// Common suffix.
	for aStart <= aEnd && bStart <= bEnd && Matches(a[aEnd], aEnd, b[bEnd], bEnd) {
		if err := r.sync(a[aEnd], b[bEnd]); err != nil {
			return err
		}
		aEnd--
		bEnd--
	}

	if aStart > aEnd {
		ref := handleAt(b, bEnd+1)
		for ; bStart <= bEnd; bStart++ {
			if err := r.Mount(parent, b[bStart], ref); err != nil {
				return err
			}
		}
		return nil
	}
	if bStart > bEnd {
		for ; aStart <= aEnd; aStart++ {
			if err := r.Unmount(parent, a[aStart]); err != nil {
				return err
			}
		}
		return nil
	}

	return r.middle(parent, a, b, aStart, aEnd, bStart, bEnd)
}

// middle handles the case where both remainders are non-empty.
func (r *Reconciler) middle(parent Handle, a, b Seq, aStart, aEnd, bStart, bEnd int) error {
	aLen := aEnd - aStart + 1
	bLen := bEnd - bStart + 1

	// sources[j] is the old index of the node at bStart+j, or -1 for a new node.
	sources := make([]int, bLen)
	for j := range sources {
		sources[j] = -1
	}
	consumed := make([]bool, aLen)
	moved := false
	last := -1
	synced := 0

	match := func(i, j int) error {
		sources[j-bStart] = i
		consumed[i-aStart] = true
		synced++
		if i < last {
			moved = true
		} else {
			last = i
		}
		return r.sync(a[i], b[j])
	}

	if bLen <= smallRemainder || aLen*bLen <= smallRemainderArea {
		for j := bStart; j <= bEnd; j++ {
			for i := aStart; i <= aEnd; i++ {
				if !consumed[i-aStart] && Matches(a[i], i, b[j], j) {
					if err := match(i, j); err != nil {
						return err
					}
					break
				}
			}
		}
	} else {
		// Filled back to front so the first of duplicate keys wins.
		index := make(map[NodeKey]int, aLen)
		for i := aEnd; i >= aStart; i-- {
			index[KeyOf(a[i], i)] = i
		}
		for j := bStart; j <= bEnd; j++ {
			i, ok := index[KeyOf(b[j], j)]
			if !ok || consumed[i-aStart] || !SameType(a[i], b[j]) {
				continue
			}
			if err := match(i, j); err != nil {
				return err
			}
		}
	}

	if synced == 0 && aLen == len(a) && r.clearer != nil {
		return r.replaceAll(parent, a, b)
	}

	// Removals go first so no stale handle is used as a reference below.
	for i := aStart; i <= aEnd; i++ {
		if !consumed[i-aStart] {
			if err := r.Unmount(parent, a[i]); err != nil {
				return err
			}
		}
	}

	if moved {
		seq := lis(sources)
		k := len(seq) - 1
		for j := bLen - 1; j >= 0; j-- {
			pos := bStart + j
			switch {
			case sources[j] == -1:
				if err := r.Mount(parent, b[pos], handleAt(b, pos+1)); err != nil {
					return err
				}
			case k >= 0 && seq[k] == j:
				k--
			default:
				if err := r.applier.MoveBefore(parent, b[pos].Handle, handleAt(b, pos+1)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if synced != bLen {
		for j := bLen - 1; j >= 0; j-- {
			if sources[j] != -1 {
				continue
			}
			pos := bStart + j
			if err := r.Mount(parent, b[pos], handleAt(b, pos+1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// replaceAll drops every old child in one call and appends all new ones.
// Only valid when no prefix or suffix matched, so b is entirely new.
func (r *Reconciler) replaceAll(parent Handle, a, b Seq) error {
	handles := make([]Handle, len(a))
	for i, n := range a {
		handles[i] = n.Handle
	}
	if err := r.clearer.RemoveAllChildren(parent, handles); err != nil {
		return err
	}
	for _, n := range a {
		release(n)
	}
	for _, n := range b {
		if err := r.Mount(parent, n, nil); err != nil {
			return err
		}
	}
	return nil
}

// handleAt returns the live handle of b[i], or nil past the end.
func handleAt(b Seq, i int) Handle {
	if i < len(b) {
		return b[i].Handle
	}
	return nil
}

// release clears the handles of a removed subtree.
func release(node *VNode) {
	node.Handle = nil
	for _, child := range node.Children {
		if child != nil {
			release(child)
		}
	}
}
