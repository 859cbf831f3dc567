package vdom

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/arbitrary"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var defaultGopterParameters = gopter.DefaultTestParameters()

// uniqueKeys reduces raw to distinct keys in [0, 32), keeping first occurrences.
func uniqueKeys(raw []uint8) []int {
	seen := make(map[int]bool)
	var keys []int
	for _, r := range raw {
		k := int(r % 32)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func permutation(n int, seed int64) []int {
	return rand.New(rand.NewSource(seed)).Perm(n)
}

// lisLength is the quadratic reference for the length of a longest strictly
// increasing subsequence.
func lisLength(a []int) int {
	best := 0
	dp := make([]int, len(a))
	for i := range a {
		dp[i] = 1
		for j := 0; j < i; j++ {
			if a[j] < a[i] && dp[j]+1 > dp[i] {
				dp[i] = dp[j] + 1
			}
		}
		if dp[i] > best {
			best = dp[i]
		}
	}
	return best
}

func checkTransition(t *testing.T, oldKeys, newKeys []int) bool {
	dom := newFakeDOM()
	prev := keyedList(oldKeys...)
	root := dom.root()
	if err := Reconcile(dom, root, nil, prev); err != nil {
		t.Logf("mount %v: %v", oldKeys, err)
		return false
	}
	before := make(map[string]*fakeNode, len(prev))
	for _, n := range prev {
		before[n.Key] = n.Handle.(*fakeNode)
	}
	dom.resetOps()

	next := keyedList(newKeys...)
	if err := Reconcile(dom, root, prev, next); err != nil {
		t.Logf("%v -> %v: %v", oldKeys, newKeys, err)
		return false
	}
	if got, want := shape(root), joinKeys(newKeys); got != want {
		t.Logf("%v -> %v: children %q", oldKeys, newKeys, got)
		return false
	}

	kept := make(map[string]bool, len(next))
	for _, n := range next {
		if h, ok := before[n.Key]; ok {
			kept[n.Key] = true
			if n.Handle != h {
				t.Logf("%v -> %v: key %s changed handle", oldKeys, newKeys, n.Key)
				return false
			}
		}
	}
	for key, h := range before {
		if !kept[key] && !h.destroyed {
			t.Logf("%v -> %v: key %s not destroyed", oldKeys, newKeys, key)
			return false
		}
	}
	if dom.removes != len(before)-len(kept) || dom.created != len(next)-len(kept) {
		t.Logf("%v -> %v: removes %d created %d", oldKeys, newKeys, dom.removes, dom.created)
		return false
	}
	return true
}

func TestReconcileOrderProperty(t *testing.T) {
	properties := gopter.NewProperties(defaultGopterParameters)
	arbitraries := arbitrary.DefaultArbitraries()

	properties.Property("live children follow the new order and keep identity",
		arbitraries.ForAll(
			func(oldRaw, newRaw []uint8) bool {
				return checkTransition(t, uniqueKeys(oldRaw), uniqueKeys(newRaw))
			}))
	properties.TestingRun(t)
}

func TestReconcileMinimalMovesProperty(t *testing.T) {
	properties := gopter.NewProperties(defaultGopterParameters)

	properties.Property("moves equal length minus LIS for permutations",
		prop.ForAll(
			func(n int, seed int64) bool {
				perm := permutation(n, seed)
				old := make([]int, n)
				for i := range old {
					old[i] = i
				}

				dom := newFakeDOM()
				prev := keyedList(old...)
				root := dom.root()
				if err := Reconcile(dom, root, nil, prev); err != nil {
					return false
				}
				dom.resetOps()
				if err := Reconcile(dom, root, prev, keyedList(perm...)); err != nil {
					return false
				}
				if dom.inserts != 0 || dom.removes != 0 {
					return false
				}
				return dom.moves == n-lisLength(perm) && shape(root) == joinKeys(perm)
			},
			gen.IntRange(0, 40),
			gen.Int64(),
		))
	properties.TestingRun(t)
}

func TestReconcileIdempotentProperty(t *testing.T) {
	properties := gopter.NewProperties(defaultGopterParameters)
	arbitraries := arbitrary.DefaultArbitraries()

	properties.Property("reconciling a sequence with itself issues no structural ops",
		arbitraries.ForAll(
			func(raw []uint8) bool {
				keys := uniqueKeys(raw)
				dom := newFakeDOM()
				prev := keyedList(keys...)
				root := dom.root()
				if err := Reconcile(dom, root, nil, prev); err != nil {
					return false
				}
				dom.resetOps()
				if err := Reconcile(dom, root, prev, keyedList(keys...)); err != nil {
					return false
				}
				return len(dom.ops) == 0 && dom.updates == len(keys) && shape(root) == joinKeys(keys)
			}))
	properties.TestingRun(t)
}

func TestLISProperty(t *testing.T) {
	properties := gopter.NewProperties(defaultGopterParameters)

	properties.Property("lis is increasing, skips new slots and is longest",
		prop.ForAll(
			func(a []int) bool {
				seq := lis(a)
				var filtered []int
				for _, v := range a {
					if v != -1 {
						filtered = append(filtered, v)
					}
				}
				if len(seq) != lisLength(filtered) {
					return false
				}
				for k, i := range seq {
					if a[i] == -1 {
						return false
					}
					if k > 0 && (seq[k-1] >= i || a[seq[k-1]] >= a[i]) {
						return false
					}
				}
				return true
			},
			gen.SliceOf(gen.IntRange(-1, 20)),
		))
	properties.TestingRun(t)
}
