// Package selection implements weighted random choice over a fixed list of entries.
package selection

import "math"

// Source provides uniform draws in [0.0, 1.0)
type Source interface {
	Float64() float64
}

// Entry pairs an item with its selection weight
type Entry[T any] struct {
	Item   T
	Weight float64
}

// Pick returns one eligible item with probability weight/sum(eligible weights).
// Entries with a non-positive or NaN weight and entries rejected by exclude are
// ineligible. ok is false when nothing is eligible.
func Pick[T any](src Source, entries []Entry[T], exclude func(T) bool) (item T, ok bool) {
	idx := PickIndex(src, entries, exclude)
	if idx < 0 {
		return item, false
	}
	return entries[idx].Item, true
}

// PickIndex is Pick returning the chosen index, or -1 when nothing is eligible.
// It consumes exactly one draw from src when at least one entry is eligible.
func PickIndex[T any](src Source, entries []Entry[T], exclude func(T) bool) int {
	total := 0.0
	last := -1
	for i, e := range entries {
		if !eligible(e, exclude) {
			continue
		}
		total += e.Weight
		last = i
	}
	if last < 0 || math.IsInf(total, 0) {
		return last
	}

	target := src.Float64() * total
	cumulative := 0.0
	for i, e := range entries {
		if !eligible(e, exclude) {
			continue
		}
		cumulative += e.Weight
		if target < cumulative {
			return i
		}
	}

	// rounding pushed target past the final cumulative sum
	return last
}

func eligible[T any](e Entry[T], exclude func(T) bool) bool {
	if !(e.Weight > 0) || math.IsInf(e.Weight, 0) {
		return false
	}
	return exclude == nil || !exclude(e.Item)
}
