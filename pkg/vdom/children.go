package vdom

// Seq is the indexed view of one parent's children at one point in time.
// The reconciler reads it, never writes it.
type Seq []*VNode

// SeqOf builds a Seq from a child slice, dropping nil entries. The input
// slice is returned as is when it has no nils.
func SeqOf(nodes []*VNode) Seq {
	for i, n := range nodes {
		if n == nil {
			out := make(Seq, i, len(nodes)-1)
			copy(out, nodes[:i])
			for _, m := range nodes[i+1:] {
				if m != nil {
					out = append(out, m)
				}
			}
			return out
		}
	}
	return Seq(nodes)
}

// Len returns the number of nodes.
func (s Seq) Len() int {
	return len(s)
}

// At returns the node at index i.
func (s Seq) At(i int) *VNode {
	return s[i]
}

// Keys returns the identity keys of the sequence in order.
func (s Seq) Keys() []NodeKey {
	keys := make([]NodeKey, len(s))
	for i, n := range s {
		keys[i] = KeyOf(n, i)
	}
	return keys
}

// List is a producer-side child list with O(1) append and concatenation.
// Builders that splice fragments together accumulate into a List and hand
// the reconciler a Seq once.
type List struct {
	head *listCell
	tail *listCell
	n    int
}

type listCell struct {
	node *VNode
	next *listCell
}

// Append adds nodes to the end of the list. Nil nodes are skipped.
func (l *List) Append(nodes ...*VNode) *List {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		c := &listCell{node: node}
		if l.tail == nil {
			l.head = c
		} else {
			l.tail.next = c
		}
		l.tail = c
		l.n++
	}
	return l
}

// Concat moves all cells of other to the end of l and leaves other empty.
func (l *List) Concat(other *List) *List {
	if other == nil || other.head == nil {
		return l
	}
	if l.tail == nil {
		l.head = other.head
	} else {
		l.tail.next = other.head
	}
	l.tail = other.tail
	l.n += other.n
	other.head, other.tail, other.n = nil, nil, 0
	return l
}

// Len returns the number of nodes in the list.
func (l *List) Len() int {
	return l.n
}

// Seq flattens the list into an indexed sequence.
func (l *List) Seq() Seq {
	out := make(Seq, 0, l.n)
	for c := l.head; c != nil; c = c.next {
		out = append(out, c.node)
	}
	return out
}
