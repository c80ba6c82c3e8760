package service

import "math"

// progressStep is the smallest percentage increase worth persisting.
const progressStep = 5

// progressTracker turns fractional encoder progress into debounced
// percentage writes. It is not safe for concurrent use; the encoder calls it
// from a single goroutine.
type progressTracker struct {
	last  int
	write func(pct int)
}

func newProgressTracker(write func(pct int)) *progressTracker {
	return &progressTracker{write: write}
}

func (p *progressTracker) Report(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	pct := int(math.Round(fraction * 100))
	pct = min(max(pct, 0), 100)

	if pct-p.last >= progressStep || (pct == 100 && p.last < 100) {
		p.last = pct
		p.write(pct)
	}
}
