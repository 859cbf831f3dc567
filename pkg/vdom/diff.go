package vdom

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrForeignHandle is returned by Recorder when it is handed a handle it did
// not produce.
var ErrForeignHandle = errors.New("vdom: handle is not a hydration ID")

// Diff reconciles prev into next as the single child of RootHID and returns
// the patches that replay the change on a client. prev must be the tree from
// the previous Diff with the same generator (or nil for the first render).
func Diff(gen *HIDGenerator, prev, next *VNode) ([]Patch, error) {
	rec := NewRecorder(gen)
	if err := New(rec).Patch(RootHID, prev, next); err != nil {
		return nil, err
	}
	return rec.Patches(), nil
}

// DiffChildren reconciles the children of the mounted node parentHID.
func DiffChildren(gen *HIDGenerator, parentHID string, prev, next []*VNode) ([]Patch, error) {
	rec := NewRecorder(gen)
	if err := New(rec).Reconcile(parentHID, prev, next); err != nil {
		return nil, err
	}
	return rec.Patches(), nil
}

// Recorder is an Applier for the server-driven model. Handles are hydration
// IDs and every primitive is recorded as a Patch for the client to replay.
type Recorder struct {
	gen     *HIDGenerator
	patches []Patch
}

// NewRecorder creates a Recorder drawing IDs from gen.
func NewRecorder(gen *HIDGenerator) *Recorder {
	if gen == nil {
		gen = NewHIDGenerator()
	}
	return &Recorder{gen: gen}
}

// Patches returns the patches recorded so far.
func (r *Recorder) Patches() []Patch {
	return r.patches
}

// Reset drops recorded patches, keeping the ID generator.
func (r *Recorder) Reset() {
	r.patches = nil
}

// Materialize implements Applier.
func (r *Recorder) Materialize(node *VNode) (Handle, error) {
	hid := r.gen.Next()
	r.patches = append(r.patches, Patch{
		Op:   PatchCreateNode,
		HID:  hid,
		Node: node,
	})
	return hid, nil
}

// InsertBefore implements Applier.
func (r *Recorder) InsertBefore(parent, node, ref Handle) error {
	return r.place(PatchInsertNode, parent, node, ref)
}

// MoveBefore implements Applier.
func (r *Recorder) MoveBefore(parent, node, ref Handle) error {
	return r.place(PatchMoveNode, parent, node, ref)
}

func (r *Recorder) place(op PatchOp, parent, node, ref Handle) error {
	parentID, err := hidFrom(parent)
	if err != nil {
		return err
	}
	hid, err := hidFrom(node)
	if err != nil {
		return err
	}
	before, err := hidFrom(ref)
	if err != nil {
		return err
	}
	r.patches = append(r.patches, Patch{
		Op:       op,
		HID:      hid,
		ParentID: parentID,
		Before:   before,
	})
	return nil
}

// RemoveChild implements Applier.
func (r *Recorder) RemoveChild(parent, node Handle) error {
	parentID, err := hidFrom(parent)
	if err != nil {
		return err
	}
	hid, err := hidFrom(node)
	if err != nil {
		return err
	}
	r.patches = append(r.patches, Patch{
		Op:       PatchRemoveNode,
		HID:      hid,
		ParentID: parentID,
	})
	return nil
}

// UpdateInPlace implements Applier. Text and raw nodes get SetText,
// elements get attribute patches.
func (r *Recorder) UpdateInPlace(prev, next *VNode, h Handle) error {
	hid, err := hidFrom(h)
	if err != nil {
		return err
	}
	switch next.Kind {
	case KindText, KindRaw:
		if prev.Text != next.Text {
			r.patches = append(r.patches, Patch{
				Op:    PatchSetText,
				HID:   hid,
				Value: next.Text,
			})
		}
	case KindElement:
		diffProps(hid, prev, next, &r.patches)
	}
	return nil
}

// hidFrom converts a handle to a hydration ID; nil maps to "".
func hidFrom(h Handle) (string, error) {
	if h == nil {
		return "", nil
	}
	hid, ok := h.(string)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrForeignHandle, h)
	}
	return hid, nil
}

// diffProps compares and patches attributes.
func diffProps(hid string, prev, next *VNode, patches *[]Patch) {
	// Check for removed/changed props
	for key, prevVal := range prev.Props {
		if isEventHandler(key) {
			continue // Events handled separately by runtime
		}
		if key == "key" {
			continue // Key is not a real attribute
		}

		nextVal, exists := next.Props[key]
		if !exists {
			*patches = append(*patches, Patch{
				Op:  PatchRemoveAttr,
				HID: hid,
				Key: key,
			})
		} else if !propsEqual(prevVal, nextVal) {
			*patches = append(*patches, Patch{
				Op:    PatchSetAttr,
				HID:   hid,
				Key:   key,
				Value: propToString(nextVal),
			})
		}
	}

	// Check for added props
	for key, nextVal := range next.Props {
		if isEventHandler(key) || key == "key" {
			continue
		}

		if _, exists := prev.Props[key]; !exists {
			*patches = append(*patches, Patch{
				Op:    PatchSetAttr,
				HID:   hid,
				Key:   key,
				Value: propToString(nextVal),
			})
		}
	}
}

// StringAttrs returns the node's attributes as strings, skipping event
// handlers and the key prop.
func StringAttrs(node *VNode) map[string]string {
	if node == nil || len(node.Props) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(node.Props))
	for key, val := range node.Props {
		if isEventHandler(key) || key == "key" {
			continue
		}
		attrs[key] = propToString(val)
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// propsEqual compares two prop values for equality.
func propsEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
		return false
	case int:
		if bv, ok := b.(int); ok {
			return av == bv
		}
		return false
	case int64:
		if bv, ok := b.(int64); ok {
			return av == bv
		}
		return false
	case float64:
		if bv, ok := b.(float64); ok {
			return av == bv
		}
		return false
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
		return false
	case nil:
		return b == nil
	}
	// Fallback to reflect for complex types
	return reflect.DeepEqual(a, b)
}

// propToString converts a prop value to a string for the patch.
func propToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
