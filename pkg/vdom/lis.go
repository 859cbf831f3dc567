package vdom

// lis returns the indices of a longest strictly increasing subsequence of a,
// ignoring entries equal to -1 (new nodes with no old position). Indices are
// returned in increasing order.
//
// Patience sorting with binary search, O(n log n). Among several longest
// subsequences it returns the one whose last element is the latest index that
// reaches the maximum length, and whose earlier elements have the smallest
// values seen up to that point.
func lis(a []int) []int {
	// tails[k] is the index of the smallest tail of an increasing
	// subsequence of length k+1 found so far.
	tails := make([]int, 0, len(a))
	prev := make([]int, len(a))

	for i, v := range a {
		if v == -1 {
			continue
		}
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			if a[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	seq := make([]int, len(tails))
	if len(tails) == 0 {
		return seq
	}
	for k, i := len(tails)-1, tails[len(tails)-1]; k >= 0; k-- {
		seq[k] = i
		i = prev[i]
	}
	return seq
}

// MinMoves returns the fewest moves that rearrange the identity order
// 0..n-1 into perm: the nodes outside a longest increasing subsequence.
// Entries equal to -1 are ignored.
func MinMoves(perm []int) int {
	n := 0
	for _, v := range perm {
		if v != -1 {
			n++
		}
	}
	return n - len(lis(perm))
}
