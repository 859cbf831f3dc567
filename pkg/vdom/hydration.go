package vdom

import (
	"fmt"
	"sync"
)

// RootHID is the hydration ID of the container every tree is mounted into.
const RootHID = "h0"

// HIDGenerator generates unique hydration IDs for live nodes.
type HIDGenerator struct {
	counter uint32
	mu      sync.Mutex
}

// NewHIDGenerator creates a new HIDGenerator.
func NewHIDGenerator() *HIDGenerator {
	return &HIDGenerator{}
}

// Next returns the next hydration ID (e.g., "h1", "h2", ...).
func (g *HIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("h%d", g.counter)
}

// Reset resets the counter to 0.
func (g *HIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter = 0
}

// Current returns the current counter value without incrementing.
func (g *HIDGenerator) Current() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}

// HIDOf returns the hydration ID bound to node, or "" when the node is not
// mounted or its handle is not a hydration ID.
func HIDOf(node *VNode) string {
	if node == nil {
		return ""
	}
	hid, _ := node.Handle.(string)
	return hid
}

// CollectHIDs returns a map of HID to VNode for all mounted nodes.
func CollectHIDs(node *VNode) map[string]*VNode {
	result := make(map[string]*VNode)
	collectHIDs(node, result)
	return result
}

func collectHIDs(node *VNode, result map[string]*VNode) {
	if node == nil {
		return
	}

	if hid := HIDOf(node); hid != "" {
		result[hid] = node
	}

	for _, child := range node.Children {
		collectHIDs(child, result)
	}
}

// FindByHID finds a node by its HID in the tree.
func FindByHID(node *VNode, hid string) *VNode {
	if node == nil {
		return nil
	}

	if HIDOf(node) == hid {
		return node
	}

	for _, child := range node.Children {
		if found := FindByHID(child, hid); found != nil {
			return found
		}
	}

	return nil
}

// Rebuild returns the patches that recreate an already mounted tree under
// RootHID with its current hydration IDs, in the order Diff would have
// emitted them for the initial render. It is used to resynchronize a client
// that lost its copy of the tree.
func Rebuild(node *VNode) ([]Patch, error) {
	if node == nil {
		return nil, nil
	}
	var patches []Patch
	if err := rebuild(node, RootHID, &patches); err != nil {
		return nil, err
	}
	return patches, nil
}

func rebuild(node *VNode, parentHID string, patches *[]Patch) error {
	hid := HIDOf(node)
	if hid == "" {
		return fmt.Errorf("%w: %T", ErrForeignHandle, node.Handle)
	}
	*patches = append(*patches, Patch{Op: PatchCreateNode, HID: hid, Node: node})
	for _, child := range SeqOf(node.Children) {
		if err := rebuild(child, hid, patches); err != nil {
			return err
		}
	}
	*patches = append(*patches, Patch{Op: PatchInsertNode, HID: hid, ParentID: parentHID})
	return nil
}
