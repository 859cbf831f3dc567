package vdom

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText    PatchOp = 0x01 // Update text content
	PatchSetAttr    PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr PatchOp = 0x03 // Remove attribute
	PatchInsertNode PatchOp = 0x04 // Attach a created node
	PatchRemoveNode PatchOp = 0x05 // Remove node and its subtree
	PatchMoveNode   PatchOp = 0x06 // Move node before a sibling
	PatchCreateNode PatchOp = 0x07 // Create a detached node
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	case PatchCreateNode:
		return "CreateNode"
	default:
		return "Unknown"
	}
}

// Structural reports whether the op changes the shape of the tree.
func (op PatchOp) Structural() bool {
	return op == PatchInsertNode || op == PatchRemoveNode || op == PatchMoveNode
}

// Patch represents a single live-tree operation addressed by hydration ID.
type Patch struct {
	Op       PatchOp // Operation type
	HID      string  // Target node's hydration ID
	ParentID string  // Parent for InsertNode/MoveNode/RemoveNode
	Before   string  // Reference sibling for InsertNode/MoveNode ("" appends)
	Key      string  // Attribute key (for SetAttr/RemoveAttr)
	Value    string  // Text or attribute value
	Node     *VNode  // Source node for CreateNode (children are not sent)
}
