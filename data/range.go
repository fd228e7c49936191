package data

// VisibleRange is the contiguous window of the dataset mapped to chart pixels.
// Invariants: 0 ≤ Start, Start+Count ≤ Total, Count ≥ 1 whenever Total > 0.
type VisibleRange struct {
	Start int
	Count int
	Total int
}

// End is one past the last visible index.
func (r VisibleRange) End() int { return r.Start + r.Count }

// Contains reports whether index i is inside the window.
func (r VisibleRange) Contains(i int) bool { return i >= r.Start && i < r.End() }

// Valid checks the range invariants.
func (r VisibleRange) Valid() bool {
	if r.Start < 0 || r.Count < 0 || r.End() > r.Total {
		return false
	}
	return r.Total == 0 || r.Count >= 1
}

// clampRange forces start/count into a valid window over total items with at
// least minCount visible (or all of them when fewer exist).
func clampRange(start, count, total, minCount int) VisibleRange {
	if total <= 0 {
		return VisibleRange{}
	}
	lo := minCount
	if lo < 1 {
		lo = 1
	}
	if lo > total {
		lo = total
	}
	count = clampInt(count, lo, total)
	start = clampInt(start, 0, total-count)
	return VisibleRange{Start: start, Count: count, Total: total}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
