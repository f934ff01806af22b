package classify

import "gonum.org/v1/gonum/stat"

// historySize is how many recent metric samples each classifier keeps for
// its statistics.
const historySize = 30

// Stats summarises a classifier's recent metric samples.
type Stats struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

// metricHistory is a fixed-capacity ring of recent metric values.
type metricHistory struct {
	values []float64
	next   int
	full   bool
}

func newMetricHistory() *metricHistory {
	return &metricHistory{values: make([]float64, 0, historySize)}
}

func (h *metricHistory) push(v float64) {
	if len(h.values) < historySize {
		h.values = append(h.values, v)
		return
	}
	h.values[h.next] = v
	h.next = (h.next + 1) % historySize
	h.full = true
}

// recent returns up to the last n samples in chronological order.
func (h *metricHistory) recent(n int) []float64 {
	ordered := h.ordered()
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

func (h *metricHistory) ordered() []float64 {
	if !h.full {
		out := make([]float64, len(h.values))
		copy(out, h.values)
		return out
	}
	out := make([]float64, 0, historySize)
	out = append(out, h.values[h.next:]...)
	out = append(out, h.values[:h.next]...)
	return out
}

func (h *metricHistory) reset() {
	h.values = h.values[:0]
	h.next = 0
	h.full = false
}

// stats computes summary statistics over the retained samples.
func (h *metricHistory) stats() Stats {
	vals := h.ordered()
	if len(vals) == 0 {
		return Stats{}
	}
	s := Stats{
		Mean:    stat.Mean(vals, nil),
		Min:     vals[0],
		Max:     vals[0],
		Samples: len(vals),
	}
	if len(vals) > 1 {
		s.StdDev = stat.StdDev(vals, nil)
	}
	for _, v := range vals[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// smoothed returns the mean of the last three samples, or the raw value when
// not enough history has accumulated. Used by the eye classifier to damp
// single-frame landmark jitter.
func (h *metricHistory) smoothed(raw float64) float64 {
	last := h.recent(3)
	if len(last) < 3 {
		return raw
	}
	return stat.Mean(last, nil)
}
