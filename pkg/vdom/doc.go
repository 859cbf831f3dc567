// Package vdom provides the virtual tree and its keyed reconciler.
//
// The virtual tree describes the desired UI. A live tree (a browser DOM, an
// in-memory mirror, a stream of patches to a client) is kept in sync with it
// through the Applier interface, which exposes the primitives the reconciler
// needs: Materialize, InsertBefore, RemoveChild, MoveBefore and
// UpdateInPlace.
//
// # Core Types
//
// VNode is the fundamental building block representing elements, text,
// fragments, components, and raw HTML. Each VNode carries an optional
// explicit Key and, once mounted, the live Handle bound to it.
//
// # Reconciliation
//
// Reconciler.Reconcile turns the live children of a parent from an old child
// sequence into a new one:
//
//  1. nodes matching at the start are synced in place;
//  2. nodes matching at the end are synced in place;
//  3. if one side is exhausted the rest is inserted or removed;
//  4. otherwise old nodes are indexed by key, new nodes are matched against
//     the index, unmatched old nodes are removed, and the matched nodes that
//     fall outside the longest increasing subsequence of old positions are
//     moved.
//
// Two nodes match when their keys and types are equal (see Matches). A node
// without an explicit key is keyed by its slot index. Matched nodes keep
// their live handle and their own children are reconciled recursively,
// depth first, before the next pair is processed.
//
// # Patches
//
// Recorder is an Applier whose handles are hydration IDs. It turns every
// primitive into a Patch that a client can replay; Diff wraps it for whole
// trees.
package vdom
