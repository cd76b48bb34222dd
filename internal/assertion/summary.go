package assertion

import (
	"math"
	"sort"
	"time"

	"chainq/internal/stats"
)

// Summary is the exact statistics of one scope's samples. Latencies are in
// milliseconds and sorted ascending. Cancelled samples are counted apart and
// take no part in any figure.
type Summary struct {
	Name      string
	Count     int
	OK        int
	KO        int
	Cancelled int
	Latencies []float64
}

// Summarize collects the samples in scope. An empty request name selects
// every sample.
func Summarize(samples []stats.Sample, request string) Summary {
	sum := Summary{Name: request}
	for _, s := range samples {
		if request != "" && s.Name != request {
			continue
		}
		if s.Status == stats.Cancelled {
			sum.Cancelled++
			continue
		}
		sum.Count++
		if s.Status == stats.OK {
			sum.OK++
		} else {
			sum.KO++
		}
		sum.Latencies = append(sum.Latencies, ms(s.Latency))
	}
	sort.Float64s(sum.Latencies)
	return sum
}

// ByRequest summarizes every request name, in first-seen order.
func ByRequest(samples []stats.Sample) []Summary {
	var names []string
	seen := map[string]bool{}
	for _, s := range samples {
		if !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	out := make([]Summary, 0, len(names))
	for _, n := range names {
		out = append(out, Summarize(samples, n))
	}
	return out
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Percentile uses the nearest-rank rule over sorted values:
// rank = ceil(p/100*N), clamped to [1, N].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	// p*n is exact for integral p, so whole ranks stay whole; the epsilon
	// absorbs rounding of fractional p such as 99.9.
	rank := int(math.Ceil(p*float64(n)/100 - 1e-9))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

func (s Summary) Empty() bool { return s.Count == 0 }

func (s Summary) Percentile(p float64) float64 { return Percentile(s.Latencies, p) }

func (s Summary) Min() float64 {
	if s.Empty() {
		return 0
	}
	return s.Latencies[0]
}

func (s Summary) Max() float64 {
	if s.Empty() {
		return 0
	}
	return s.Latencies[len(s.Latencies)-1]
}

func (s Summary) Mean() float64 {
	if s.Empty() {
		return 0
	}
	var total float64
	for _, v := range s.Latencies {
		total += v
	}
	return total / float64(len(s.Latencies))
}

// FailedPercent is KO over all non-cancelled samples, in percent.
func (s Summary) FailedPercent() float64 {
	if s.Empty() {
		return 0
	}
	return float64(s.KO) / float64(s.Count) * 100
}

func (s Summary) SuccessPercent() float64 {
	if s.Empty() {
		return 0
	}
	return float64(s.OK) / float64(s.Count) * 100
}
