package stats

import "sync"

// Observer receives every sample as it is recorded.
type Observer interface {
	Observe(Sample)
}

// Collector is the append-only sample store shared by all virtual users
// of a run. After Freeze it rejects further samples.
type Collector struct {
	mu        sync.Mutex
	samples   []Sample
	frozen    bool
	dropped   int
	live      *Stats
	observers []Observer
}

func NewCollector(observers ...Observer) *Collector {
	return &Collector{
		samples:   make([]Sample, 0, 1024),
		live:      NewStats(),
		observers: observers,
	}
}

// Record appends s. Safe for concurrent use.
func (c *Collector) Record(s Sample) {
	c.mu.Lock()
	if c.frozen {
		c.dropped++
		c.mu.Unlock()
		return
	}
	c.samples = append(c.samples, s)
	c.mu.Unlock()

	c.live.Add(s)
	for _, o := range c.observers {
		o.Observe(s)
	}
}

// Live returns the running aggregates.
func (c *Collector) Live() *Stats { return c.live }

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Freeze stops recording and returns the samples in record order.
func (c *Collector) Freeze() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Dropped counts samples that arrived after Freeze.
func (c *Collector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
