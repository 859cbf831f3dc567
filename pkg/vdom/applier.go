package vdom

// Applier performs structural edits on the live tree on behalf of the
// reconciler. Handles are whatever Materialize returns; a nil ref means
// "append at the end of parent".
//
// Errors are returned to the caller of Reconcile unchanged; the pass stops at
// the first one.
type Applier interface {
	// Materialize creates a detached live node for a brand-new VNode.
	// Children are mounted separately by the reconciler.
	Materialize(node *VNode) (Handle, error)

	// InsertBefore attaches a detached node to parent before ref.
	InsertBefore(parent, node, ref Handle) error

	// RemoveChild detaches node from parent and destroys its subtree.
	RemoveChild(parent, node Handle) error

	// MoveBefore relocates a node that is already a child of parent.
	MoveBefore(parent, node, ref Handle) error

	// UpdateInPlace syncs the non-structural payload (text, attributes,
	// component props) of a matched pair. Called before the pair's children
	// are reconciled.
	UpdateInPlace(prev, next *VNode, h Handle) error
}

// Clearer is implemented by appliers that can drop every child of a parent
// in one operation. The reconciler uses it when none of the old children
// survive; nodes lists the handles being destroyed, in old order.
type Clearer interface {
	RemoveAllChildren(parent Handle, nodes []Handle) error
}
