package table

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
)

// Diff classifies a new list of values against the live entries of prev by position.
// Positions beyond the previous length are Added; previous positions beyond the new length
// are appended once as Removed.
func Diff[T any](prev *Table[T], values []T, cmp Comparer[T]) *Table[T] {
	if cmp == nil {
		cmp = DefaultComparer[T]()
	}
	old := prev.Values()
	entries := make([]domain.Entry[T], 0, max(len(values), len(old)))
	for i, v := range values {
		switch {
		case i >= len(old):
			entries = append(entries, domain.Entry[T]{Value: v, State: domain.Added})
		case cmp(old[i], v):
			entries = append(entries, domain.Entry[T]{Value: old[i], State: domain.Cached})
		default:
			entries = append(entries, domain.Entry[T]{Value: v, State: domain.Modified})
		}
	}
	for i := len(values); i < len(old); i++ {
		entries = append(entries, domain.Entry[T]{Value: old[i], State: domain.Removed})
	}
	return FromEntries(entries)
}

// DiffKeyed classifies values against prev by key and keeps the order of values, so inserting
// a value does not shift the ones after it. Keys whose relative order is unchanged are paired
// as Cached or Modified; a key that moved is Removed at its old place and Added at its new one,
// which keeps surviving entries in previous order for downstream slots. Duplicate keys in
// values are rejected with domain.ErrDuplicateKey.
func DiffKeyed[T any](prev *Table[T], values []T, key func(T) string, cmp Comparer[T]) (*Table[T], error) {
	if cmp == nil {
		cmp = DefaultComparer[T]()
	}
	newIndex := make(map[string]int, len(values))
	for i, v := range values {
		k := key(v)
		if _, dup := newIndex[k]; dup {
			return nil, fmt.Errorf("%w %q", domain.ErrDuplicateKey, k)
		}
		newIndex[k] = i
	}

	old := prev.Values()
	var candidates, targets []int
	claimed := make(map[string]bool, len(old))
	for i, v := range old {
		k := key(v)
		j, ok := newIndex[k]
		if !ok || claimed[k] {
			continue
		}
		claimed[k] = true
		candidates = append(candidates, i)
		targets = append(targets, j)
	}

	pairedOld := make([]int, len(old))
	for i := range pairedOld {
		pairedOld[i] = -1
	}
	pairedNew := make([]bool, len(values))
	for _, c := range increasingRun(targets) {
		pairedOld[candidates[c]] = targets[c]
		pairedNew[targets[c]] = true
	}

	entries := make([]domain.Entry[T], 0, len(values)+len(old))
	i, j := 0, 0
	for i < len(old) || j < len(values) {
		switch {
		case i < len(old) && pairedOld[i] < 0:
			entries = append(entries, domain.Entry[T]{Value: old[i], State: domain.Removed})
			i++
		case j < len(values) && !pairedNew[j]:
			entries = append(entries, domain.Entry[T]{Value: values[j], State: domain.Added})
			j++
		case cmp(old[i], values[j]):
			entries = append(entries, domain.Entry[T]{Value: old[i], State: domain.Cached})
			i, j = i+1, j+1
		default:
			entries = append(entries, domain.Entry[T]{Value: values[j], State: domain.Modified})
			i, j = i+1, j+1
		}
	}
	return FromEntries(entries), nil
}

// increasingRun returns the positions of a longest strictly increasing subsequence of seq.
func increasingRun(seq []int) []int {
	tails := make([]int, 0, len(seq))
	parent := make([]int, len(seq))
	for k, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		parent[k] = -1
		if lo > 0 {
			parent[k] = tails[lo-1]
		}
		if lo == len(tails) {
			tails = append(tails, k)
		} else {
			tails[lo] = k
		}
	}

	out := make([]int, len(tails))
	if len(tails) == 0 {
		return out
	}
	for k, at := len(tails)-1, tails[len(tails)-1]; k >= 0; k, at = k-1, parent[at] {
		out[k] = at
	}
	return out
}
