// Package assertion evaluates pass/fail criteria over the samples of a
// finished run.
//
// Assertions are built fluently:
//
//	assertion.Global().ResponseTime().Percentile(95).Lt(300)
//	assertion.Details("Search").FailedRequests().Percent().Lte(5)
//
// Response times are in milliseconds.
package assertion

import (
	"fmt"
	"strconv"

	"chainq/internal/stats"
)

type MetricKind int

const (
	PercentileOf MetricKind = iota
	MaxOf
	MeanOf
	FailedPercent
	SuccessPercent
)

// Metric is the measured figure. P is only used by PercentileOf.
type Metric struct {
	Kind MetricKind
	P    float64
}

func (m Metric) String() string {
	switch m.Kind {
	case PercentileOf:
		return ordinal(m.P) + " percentile of response time"
	case MaxOf:
		return "max of response time"
	case MeanOf:
		return "mean of response time"
	case FailedPercent:
		return "percentage of failed requests"
	case SuccessPercent:
		return "percentage of successful requests"
	}
	return "unknown metric"
}

func (m Metric) measure(s Summary) float64 {
	switch m.Kind {
	case PercentileOf:
		return s.Percentile(m.P)
	case MaxOf:
		return s.Max()
	case MeanOf:
		return s.Mean()
	case FailedPercent:
		return s.FailedPercent()
	case SuccessPercent:
		return s.SuccessPercent()
	}
	return 0
}

type Comparator int

const (
	Lt Comparator = iota
	Lte
	Gt
	Gte
)

func (c Comparator) String() string {
	switch c {
	case Lt:
		return "is less than"
	case Lte:
		return "is less than or equal to"
	case Gt:
		return "is greater than"
	case Gte:
		return "is greater than or equal to"
	}
	return "?"
}

func (c Comparator) holds(v, threshold float64) bool {
	switch c {
	case Lt:
		return v < threshold
	case Lte:
		return v <= threshold
	case Gt:
		return v > threshold
	case Gte:
		return v >= threshold
	}
	return false
}

// Assertion is one criterion. An empty Request means the global scope.
type Assertion struct {
	Request    string
	Metric     Metric
	Comparator Comparator
	Threshold  float64
}

func (a Assertion) String() string {
	scope := "Global"
	if a.Request != "" {
		scope = a.Request
	}
	return fmt.Sprintf("%s: %s %s %s", scope, a.Metric, a.Comparator, strconv.FormatFloat(a.Threshold, 'f', 1, 64))
}

// Result is the outcome of one assertion.
type Result struct {
	Assertion Assertion
	Value     float64
	Passed    bool
	// Empty is set when no sample fell in the scope; the assertion fails.
	Empty bool
}

func (r Result) String() string {
	verdict := "OK"
	if !r.Passed {
		verdict = "KO"
	}
	if r.Empty {
		return fmt.Sprintf("%s : %s (no samples)", r.Assertion, verdict)
	}
	return fmt.Sprintf("%s : %s (actual %.1f)", r.Assertion, verdict, r.Value)
}

// Evaluate checks every assertion against the samples. The same samples
// always give the same results.
func Evaluate(samples []stats.Sample, assertions []Assertion) []Result {
	cache := map[string]Summary{}
	results := make([]Result, 0, len(assertions))
	for _, a := range assertions {
		sum, ok := cache[a.Request]
		if !ok {
			sum = Summarize(samples, a.Request)
			cache[a.Request] = sum
		}
		if sum.Empty() {
			results = append(results, Result{Assertion: a, Empty: true})
			continue
		}
		v := a.Metric.measure(sum)
		results = append(results, Result{Assertion: a, Value: v, Passed: a.Comparator.holds(v, a.Threshold)})
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Percentiles lists the distinct percentiles used by the assertions.
func Percentiles(assertions []Assertion) []float64 {
	var out []float64
	seen := map[float64]bool{}
	for _, a := range assertions {
		if a.Metric.Kind == PercentileOf && !seen[a.Metric.P] {
			seen[a.Metric.P] = true
			out = append(out, a.Metric.P)
		}
	}
	return out
}

func ordinal(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if p != float64(int(p)) {
		return s + "th"
	}
	n := int(p)
	switch {
	case n%100 >= 11 && n%100 <= 13:
		return s + "th"
	case n%10 == 1:
		return s + "st"
	case n%10 == 2:
		return s + "nd"
	case n%10 == 3:
		return s + "rd"
	}
	return s + "th"
}
