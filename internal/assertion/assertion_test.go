package assertion

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainq/internal/stats"
)

func samplesOf(name string, latency time.Duration, n int, status stats.Status) []stats.Sample {
	out := make([]stats.Sample, n)
	for i := range out {
		out[i] = stats.Sample{Name: name, Latency: latency, Status: status}
	}
	return out
}

func TestP95BelowThreshold(t *testing.T) {
	samples := append(samplesOf("Home", 100*time.Millisecond, 96, stats.OK), samplesOf("Home", 500*time.Millisecond, 4, stats.OK)...)

	results := Evaluate(samples, []Assertion{Global().ResponseTime().Percentile(95).Lt(300)})
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, 100.0, results[0].Value)
	assert.True(t, AllPassed(results))

	results = Evaluate(samples, []Assertion{Global().ResponseTime().Percentile(97).Lt(300)})
	assert.False(t, results[0].Passed)
	assert.Equal(t, 500.0, results[0].Value)
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{15, 20, 35, 40, 50}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 15},
		{5, 15},
		{30, 20},
		{40, 20},
		{50, 35},
		{100, 50},
		{150, 50},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Percentile(sorted, tc.p), "p%v", tc.p)
	}
	assert.Equal(t, 0.0, Percentile(nil, 95))
}

func TestPercentileWholeRanks(t *testing.T) {
	var sorted []float64
	var samples []stats.Sample
	for i := 1; i <= 100; i++ {
		sorted = append(sorted, float64(i))
		samples = append(samples, stats.Sample{Name: "Home", Latency: time.Duration(i) * time.Millisecond, Status: stats.OK})
	}
	for p := 1; p <= 100; p++ {
		assert.Equal(t, float64(p), Percentile(sorted, float64(p)), "p%d", p)
	}

	results := Evaluate(samples, []Assertion{Global().ResponseTime().Percentile(55).Lt(56)})
	assert.True(t, results[0].Passed)
	assert.Equal(t, 55.0, results[0].Value)

	assert.Equal(t, 100.0, Percentile(sorted, 99.9))
	var thousand []float64
	for i := 1; i <= 1000; i++ {
		thousand = append(thousand, float64(i))
	}
	assert.Equal(t, 999.0, Percentile(thousand, 99.9))
	assert.Equal(t, 1000.0, Percentile(thousand, 99.95))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	var samples []stats.Sample
	for i := 0; i < 500; i++ {
		status := stats.OK
		if rnd.Intn(10) == 0 {
			status = stats.KO
		}
		samples = append(samples, stats.Sample{Name: "Search", Latency: time.Duration(rnd.Intn(400)) * time.Millisecond, Status: status})
	}
	asserts := []Assertion{
		Global().ResponseTime().Percentile(95).Lt(300),
		Global().ResponseTime().Max().Lte(400),
		Details("Search").FailedRequests().Percent().Lte(5),
		Details("Search").SuccessfulRequests().Percent().Gt(80),
	}

	first := Evaluate(samples, asserts)
	shuffled := append([]stats.Sample(nil), samples...)
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	assert.Equal(t, first, Evaluate(shuffled, asserts))
}

func TestEmptyScopeFails(t *testing.T) {
	samples := samplesOf("Home", time.Millisecond, 3, stats.OK)
	results := Evaluate(samples, []Assertion{
		Details("Search").ResponseTime().Mean().Lt(1000),
		Global().FailedRequests().Percent().Lte(0),
	})
	assert.False(t, results[0].Passed)
	assert.True(t, results[0].Empty)
	assert.True(t, results[1].Passed)
	assert.False(t, AllPassed(results))
}

func TestCancelledSamplesAreExcluded(t *testing.T) {
	samples := append(samplesOf("Home", 10*time.Millisecond, 10, stats.OK), samplesOf("Home", 0, 90, stats.Cancelled)...)
	sum := Summarize(samples, "")
	assert.Equal(t, 10, sum.Count)
	assert.Equal(t, 90, sum.Cancelled)
	assert.Equal(t, 10.0, sum.Percentile(50))
	assert.Equal(t, 0.0, sum.FailedPercent())

	results := Evaluate(samplesOf("Home", 0, 5, stats.Cancelled), []Assertion{Global().ResponseTime().Max().Lt(1)})
	assert.True(t, results[0].Empty)
}

func TestSummaryFigures(t *testing.T) {
	samples := []stats.Sample{
		{Name: "A", Latency: 30 * time.Millisecond, Status: stats.OK},
		{Name: "B", Latency: 10 * time.Millisecond, Status: stats.KO},
		{Name: "A", Latency: 20 * time.Millisecond, Status: stats.KO},
	}
	per := ByRequest(samples)
	require.Len(t, per, 2)
	assert.Equal(t, "A", per[0].Name)
	assert.Equal(t, 20.0, per[0].Min())
	assert.Equal(t, 30.0, per[0].Max())
	assert.Equal(t, 25.0, per[0].Mean())
	assert.Equal(t, 50.0, per[0].FailedPercent())
	assert.Equal(t, 100.0, per[1].FailedPercent())
}

func TestAssertionString(t *testing.T) {
	assert.Equal(t, "Global: 95th percentile of response time is less than 300.0", Global().ResponseTime().Percentile(95).Lt(300).String())
	assert.Equal(t, "Search: percentage of failed requests is less than or equal to 5.0", Details("Search").FailedRequests().Percent().Lte(5).String())
	assert.Equal(t, "99.9th", ordinal(99.9))
	assert.Equal(t, "1st", ordinal(1))
	assert.Equal(t, "12th", ordinal(12))
	assert.Equal(t, []float64{95, 99}, Percentiles([]Assertion{
		Global().ResponseTime().Percentile(95).Lt(1),
		Details("A").ResponseTime().Percentile(95).Lt(1),
		Global().ResponseTime().Percentile(99).Lt(1),
		Global().ResponseTime().Max().Lt(1),
	}))
}
