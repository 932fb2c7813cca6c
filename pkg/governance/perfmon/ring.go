package perfmon

import "sort"

// sampleRing is a fixed-capacity ring buffer of duration samples in
// milliseconds. Writes overwrite the oldest sample once full; the hot write
// path never allocates.
type sampleRing struct {
	samples []float64
	next    int
	full    bool
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{samples: make([]float64, capacity)}
}

// push records a sample, overwriting the oldest once the ring is full.
func (r *sampleRing) push(v float64) {
	r.samples[r.next] = v
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// len returns the number of valid samples.
func (r *sampleRing) len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// reset discards all samples.
func (r *sampleRing) reset() {
	r.next = 0
	r.full = false
}

// quantiles returns the estimated q-quantiles for the given fractions. It
// snapshots and sorts the valid samples; sample order in the ring is
// irrelevant to the estimate. Returns zeros when the ring is empty.
func (r *sampleRing) quantiles(qs ...float64) []float64 {
	out := make([]float64, len(qs))
	n := r.len()
	if n == 0 {
		return out
	}

	sorted := make([]float64, n)
	copy(sorted, r.samples[:n])
	sort.Float64s(sorted)

	for i, q := range qs {
		idx := int(q * float64(n))
		if idx >= n {
			idx = n - 1
		}
		out[i] = sorted[idx]
	}
	return out
}
