package stats

import (
	"sync"
	"sync/atomic"
)

// Stats holds real-time aggregated metrics for the live views. Final
// figures are computed from the frozen sample set instead.
type Stats struct {
	Requests  uint64
	Success   uint64
	Fail      uint64
	Cancelled uint64
	Bytes     uint64

	// Response time histogram (microseconds), OK and KO requests
	ResponseTime *SafeHistogram

	mu     sync.Mutex
	errors map[string]int
}

func NewStats() *Stats {
	return &Stats{
		ResponseTime: NewSafeHistogram(),
		errors:       make(map[string]int),
	}
}

func (s *Stats) Add(sample Sample) {
	atomic.AddUint64(&s.Requests, 1)
	atomic.AddUint64(&s.Bytes, uint64(sample.Bytes))

	switch sample.Status {
	case OK:
		atomic.AddUint64(&s.Success, 1)
	case KO:
		atomic.AddUint64(&s.Fail, 1)
	case Cancelled:
		atomic.AddUint64(&s.Cancelled, 1)
		return
	}
	s.ResponseTime.RecordDuration(sample.Latency)

	if sample.Status == KO && sample.Error != "" {
		s.mu.Lock()
		s.errors[sample.Error]++
		s.mu.Unlock()
	}
}

func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(reqs)) * 100
}

func (s *Stats) P50() float64 { return s.ResponseTime.QuantileMs(50) }

func (s *Stats) P90() float64 { return s.ResponseTime.QuantileMs(90) }

func (s *Stats) P95() float64 { return s.ResponseTime.QuantileMs(95) }

func (s *Stats) P99() float64 { return s.ResponseTime.QuantileMs(99) }

// GetErrorCounts returns a copy of KO error messages and their counts.
func (s *Stats) GetErrorCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}
