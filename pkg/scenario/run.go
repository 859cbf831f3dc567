package scenario

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vango-dev/vdiff/pkg/livetree"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// ErrFailed is returned by Report.Err when a scenario did not pass.
var ErrFailed = errors.New("scenario: expectation failed")

// Result is the outcome of one scenario.
type Result struct {
	Name     string
	Stats    vdom.Stats
	Shape    string        // live children after the pass
	Duration time.Duration // reconciliation time only
	Failures []string
	Err      error // parse or applier error; the checks did not run
}

// Passed reports whether the scenario ran and every check held.
func (r *Result) Passed() bool {
	return r.Err == nil && len(r.Failures) == 0
}

// Run mounts sc.Old into a fresh live tree, reconciles it to sc.New and
// checks that:
//
//   - the live children equal sc.New;
//   - every explicitly keyed top-level node that survives keeps its live node;
//   - every live node of sc.Old that was not carried over is destroyed and no
//     other node is alive;
//   - the primitive counts match sc.Expect.
func Run(sc *Scenario) *Result {
	res := &Result{Name: sc.Name}

	prev, err := Parse(sc.Old)
	if err != nil {
		res.Err = fmt.Errorf("old: %w", err)
		return res
	}
	next, err := Parse(sc.New)
	if err != nil {
		res.Err = fmt.Errorf("new: %w", err)
		return res
	}

	doc := livetree.New()
	root := doc.Root()
	if err := vdom.Reconcile(doc, root, nil, prev); err != nil {
		res.Err = fmt.Errorf("mount: %w", err)
		return res
	}

	before := topLevelHandles(prev)
	oldByKey := uniqueKeyed(prev)

	counter := vdom.NewCounter(doc)
	start := time.Now()
	err = vdom.New(counter).Reconcile(root, prev, next)
	res.Duration = time.Since(start)
	res.Stats = counter.Stats
	res.Shape = livetree.Shape(root)
	if err != nil {
		res.Err = fmt.Errorf("reconcile: %w", err)
		return res
	}

	fail := func(format string, args ...any) {
		res.Failures = append(res.Failures, fmt.Sprintf(format, args...))
	}

	if err := livetree.EqualChildren(root, next); err != nil {
		fail("tree: %v", err)
	}

	for key, n := range uniqueKeyed(next) {
		o, ok := oldByKey[key]
		if !ok || !vdom.SameType(o.node, n.node) {
			continue
		}
		if n.node.Handle != o.handle {
			fail("identity: %s was recreated", key)
		}
	}

	kept := make(map[*livetree.Node]bool)
	total := 0
	walk(next, func(v *vdom.VNode) {
		total++
		if h, ok := v.Handle.(*livetree.Node); ok {
			kept[h] = true
		}
	})
	for _, h := range before {
		if !kept[h] && !h.Destroyed() {
			fail("destroy: removed node %s is still alive", describe(h))
		}
	}
	if live := doc.Live(); live != total {
		fail("destroy: %d live nodes, want %d", live, total)
	}

	check := func(name string, want *int, got int) {
		if want != nil && *want != got {
			fail("%s = %d, want %d", name, got, *want)
		}
	}
	check("created", sc.Expect.Created, res.Stats.Materialized)
	check("inserts", sc.Expect.Inserts, res.Stats.Inserted)
	check("moves", sc.Expect.Moves, res.Stats.Moved)
	check("removes", sc.Expect.Removes, res.Stats.Removed)
	check("updates", sc.Expect.Updates, res.Stats.Updated)

	return res
}

type keyed struct {
	node   *vdom.VNode
	handle vdom.Handle
}

// uniqueKeyed indexes explicitly keyed nodes by key, leaving out keys that
// occur more than once.
func uniqueKeyed(nodes []*vdom.VNode) map[string]keyed {
	out := make(map[string]keyed)
	dup := make(map[string]bool)
	for _, n := range vdom.SeqOf(nodes) {
		if n.Key == "" {
			continue
		}
		if _, ok := out[n.Key]; ok {
			dup[n.Key] = true
		}
		out[n.Key] = keyed{node: n, handle: n.Handle}
	}
	for k := range dup {
		delete(out, k)
	}
	return out
}

func topLevelHandles(nodes []*vdom.VNode) []*livetree.Node {
	var out []*livetree.Node
	for _, n := range vdom.SeqOf(nodes) {
		if h, ok := n.Handle.(*livetree.Node); ok {
			out = append(out, h)
		}
	}
	return out
}

func walk(nodes []*vdom.VNode, fn func(*vdom.VNode)) {
	for _, n := range vdom.SeqOf(nodes) {
		fn(n)
		walk(n.Children, fn)
	}
}

func describe(n *livetree.Node) string {
	if n.Key != "" {
		return n.Key
	}
	return n.Kind.String()
}

// Report collects the results of a suite.
type Report struct {
	Suite   string
	Results []*Result
}

// RunSuite runs every scenario of s in order.
func RunSuite(s *Suite) *Report {
	rep := &Report{Suite: s.Name, Results: make([]*Result, 0, len(s.Scenarios))}
	for i := range s.Scenarios {
		rep.Results = append(rep.Results, Run(&s.Scenarios[i]))
	}
	return rep
}

// Failed returns the number of scenarios that did not pass.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Totals sums the stats of every scenario.
func (r *Report) Totals() vdom.Stats {
	var s vdom.Stats
	for _, res := range r.Results {
		s = s.Add(res.Stats)
	}
	return s
}

// Err returns nil when every scenario passed, and otherwise an error wrapping
// ErrFailed that lists the failing scenarios.
func (r *Report) Err() error {
	var names []string
	for _, res := range r.Results {
		if !res.Passed() {
			names = append(names, res.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrFailed, r.Suite, strings.Join(names, ", "))
}
