package stats

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct{ n int64 }

func (o *countingObserver) Observe(Sample) { atomic.AddInt64(&o.n, 1) }

func TestCollectorConcurrentAppend(t *testing.T) {
	obs := &countingObserver{}
	c := NewCollector(obs)

	const users = 50
	const perUser = 40
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				c.Record(Sample{Name: "Home", Latency: time.Millisecond, Status: OK})
			}
		}()
	}
	wg.Wait()

	samples := c.Freeze()
	assert.Len(t, samples, users*perUser)
	assert.Equal(t, int64(users*perUser), atomic.LoadInt64(&obs.n))
	assert.Equal(t, uint64(users*perUser), c.Live().Requests)

	c.Record(Sample{Name: "late"})
	assert.Equal(t, users*perUser, c.Len())
	assert.Equal(t, 1, c.Dropped())
}

func TestStatsAdd(t *testing.T) {
	s := NewStats()
	s.Add(Sample{Status: OK, Latency: 100 * time.Millisecond, Bytes: 10})
	s.Add(Sample{Status: KO, Latency: 300 * time.Millisecond, Error: "CheckFailed: status.in(200): but actually found 500"})
	s.Add(Sample{Status: KO, Latency: 300 * time.Millisecond, Error: "CheckFailed: status.in(200): but actually found 500"})
	s.Add(Sample{Status: Cancelled})

	assert.Equal(t, uint64(4), s.Requests)
	assert.Equal(t, uint64(1), s.Success)
	assert.Equal(t, uint64(2), s.Fail)
	assert.Equal(t, uint64(1), s.Cancelled)
	assert.Equal(t, int64(3), s.ResponseTime.TotalCount(), "cancelled samples carry no latency")
	assert.InDelta(t, 300, s.P99(), 1)
	assert.InDelta(t, 50, s.ErrorRate(), 0.001)
	assert.Equal(t, map[string]int{"CheckFailed: status.in(200): but actually found 500": 2}, s.GetErrorCounts())
}

func TestSafeHistogramClamps(t *testing.T) {
	h := NewSafeHistogram()
	h.RecordDuration(0)
	h.RecordDuration(time.Hour)
	assert.Equal(t, int64(2), h.TotalCount())
	assert.InDelta(t, float64(10*time.Minute/time.Millisecond), h.MaxMs(), 1000)
}

func TestSampleStatusJSON(t *testing.T) {
	b, err := json.Marshal(Sample{Name: "Post", Status: Cancelled})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"CANCELLED"`)
}

func TestSampleStatusRoundTrip(t *testing.T) {
	var s Sample
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Home","status":"KO"}`), &s))
	assert.Equal(t, KO, s.Status)
	assert.Error(t, json.Unmarshal([]byte(`{"status":"MAYBE"}`), &s))
}
