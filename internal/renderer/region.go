package renderer

// DefaultPinMultiplier makes the pinned region five viewports tall.
const DefaultPinMultiplier = 5

type zone int

const (
	zoneBefore zone = iota
	zoneInside
	zoneAfter
)

// Region is a pinned scroll range. While the page scrolls through it the
// viewport stays fixed and scroll distance becomes animation progress.
type Region struct {
	Top            float64 // document offset where pinning starts
	ViewportHeight float64
	PinMultiplier  float64
}

// Distance is the scroll length that maps onto progress 0..1.
func (r Region) Distance() float64 {
	m := r.PinMultiplier
	if m <= 0 {
		m = DefaultPinMultiplier
	}
	return r.ViewportHeight * m
}

// Progress returns how far y has scrolled through the region, in [0,1].
func (r Region) Progress(y float64) float64 {
	d := r.Distance()
	if d <= 0 {
		return 0
	}
	p := (y - r.Top) / d
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// zoneOf classifies a scroll offset relative to the region.
func (r Region) zoneOf(y float64) zone {
	switch {
	case y < r.Top:
		return zoneBefore
	case y >= r.Top+r.Distance():
		return zoneAfter
	default:
		return zoneInside
	}
}
