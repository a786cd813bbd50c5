package loading

// Segment names, in load priority order.
const (
	SegmentBeginning = "beginning"
	SegmentEnding    = "ending"
	SegmentMiddle    = "middle"
)

// Batch is a slice of frame ids loaded together.
type Batch struct {
	Segment string
	IDs     []string
}

// Plan orders a sequence for loading: critical keyframes first, then the
// beginning quartile, the ending quartile and the middle half.
type Plan struct {
	Critical []string
	Batches  []Batch
}

// Remaining counts the frames outside the critical set.
func (p Plan) Remaining() int {
	n := 0
	for _, b := range p.Batches {
		n += len(b.IDs)
	}
	return n
}

// CriticalIndices returns the first, 25%, 50%, 75% and last index, deduplicated.
func CriticalIndices(n int) []int {
	if n <= 0 {
		return nil
	}
	candidates := []int{0, n / 4, n / 2, n * 3 / 4, n - 1}
	seen := make(map[int]bool, len(candidates))
	var out []int
	for _, idx := range candidates {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// BuildPlan splits ids into the critical set and size-bounded batches.
func BuildPlan(ids []string, batchSize int) Plan {
	n := len(ids)
	if batchSize < 1 {
		batchSize = 1
	}

	var plan Plan
	critical := make(map[int]bool)
	for _, idx := range CriticalIndices(n) {
		critical[idx] = true
		plan.Critical = append(plan.Critical, ids[idx])
	}

	q1, q3 := n/4, n*3/4
	segments := []struct {
		name     string
		from, to int
	}{
		{SegmentBeginning, 0, q1},
		{SegmentEnding, q3, n},
		{SegmentMiddle, q1, q3},
	}

	for _, seg := range segments {
		var pending []string
		for i := seg.from; i < seg.to; i++ {
			if critical[i] {
				continue
			}
			pending = append(pending, ids[i])
		}
		for start := 0; start < len(pending); start += batchSize {
			end := min(start+batchSize, len(pending))
			plan.Batches = append(plan.Batches, Batch{Segment: seg.name, IDs: pending[start:end]})
		}
	}

	return plan
}
