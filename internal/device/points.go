package device

// PointsWindow is the bounded, absolutely-indexed price buffer behind a
// trailing entry's review chart. Points[i] holds the sample at absolute
// index BaseIndex+i; TotalPoints is the high-water mark of absolute
// indices ever observed plus one.
type PointsWindow struct {
	BaseIndex   int
	Points      []float64
	TotalPoints int

	// Discontinuity is set when a gap reset dropped buffered history. The
	// presentation layer renders it as a break in the chart. An Init
	// clears it.
	Discontinuity bool
}

// Init replaces the window wholesale.
func (w *PointsWindow) Init(startIdx int, points []float64, totalLen int) {
	w.BaseIndex = startIdx
	w.Points = append(w.Points[:0:0], points...)
	w.TotalPoints = totalLen
	w.Discontinuity = false
}

// Apply incorporates a single absolutely-indexed sample. Indices strictly
// before the window start are stale and ignored. A sample past the end of
// the buffer means a gap: the window resets to that single point rather
// than holding unbounded out-of-order history.
func (w *PointsWindow) Apply(idx int, price float64) {
	switch {
	case len(w.Points) == 0:
		w.BaseIndex = idx
		w.Points = append(w.Points, price)
	case idx < w.BaseIndex:
		// stale or duplicate from before the window start
	default:
		offset := idx - w.BaseIndex
		switch {
		case offset == len(w.Points):
			w.Points = append(w.Points, price)
		case offset < len(w.Points):
			w.Points[offset] = price
		default:
			w.BaseIndex = idx
			w.Points = []float64{price}
			w.Discontinuity = true
		}
	}
	if idx+1 > w.TotalPoints {
		w.TotalPoints = idx + 1
	}
}

// Clone returns an independent copy of the window.
func (w *PointsWindow) Clone() PointsWindow {
	out := *w
	out.Points = append([]float64(nil), w.Points...)
	return out
}
