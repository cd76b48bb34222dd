// Package report turns a finished run into the summary shown on stdout,
// the exported files and the process exit status.
package report

import (
	"sort"
	"time"

	"chainq/internal/assertion"
	"chainq/internal/runner"
	"chainq/internal/stats"
)

// DefaultPercentiles always appear in the summary.
var DefaultPercentiles = []float64{50, 75, 95, 99}

type Percentile struct {
	P  float64 `json:"p"`
	Ms float64 `json:"ms"`
}

// RequestStats is one summary row. Times are in milliseconds.
type RequestStats struct {
	Name        string       `json:"name"`
	Count       int          `json:"count"`
	OK          int          `json:"ok"`
	KO          int          `json:"ko"`
	Cancelled   int          `json:"cancelled"`
	Min         float64      `json:"min_ms"`
	Mean        float64      `json:"mean_ms"`
	Max         float64      `json:"max_ms"`
	Percentiles []Percentile `json:"percentiles"`
	RPS         float64      `json:"rps"`
}

// Failure counts one error message for one request name.
type Failure struct {
	Request string `json:"request"`
	Error   string `json:"error"`
	Count   int    `json:"count"`
}

type AssertionOutcome struct {
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Passed      bool    `json:"passed"`
	Empty       bool    `json:"empty,omitempty"`
}

type Users struct {
	Scheduled int `json:"scheduled"`
	Started   int `json:"started"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Report is the JSON summary of a run.
type Report struct {
	RunID      string             `json:"run_id"`
	Simulation string             `json:"simulation"`
	Seed       int64              `json:"seed"`
	Start      time.Time          `json:"start"`
	Duration   time.Duration      `json:"duration"`
	Aborted    bool               `json:"aborted"`
	Passed     bool               `json:"passed"`
	Users      Users              `json:"users"`
	Global     RequestStats       `json:"global"`
	Requests   []RequestStats     `json:"requests"`
	Failures   []Failure          `json:"failures,omitempty"`
	Assertions []AssertionOutcome `json:"assertions"`
}

// Build summarizes res. Percentiles used by assertions are listed next to
// the defaults.
func Build(res *runner.Result, asserted []float64) *Report {
	ps := mergePercentiles(DefaultPercentiles, asserted)
	rep := &Report{
		RunID:      res.RunID,
		Simulation: res.Simulation,
		Seed:       res.Seed,
		Start:      res.Start,
		Duration:   res.Duration,
		Aborted:    res.Aborted,
		Passed:     res.Passed(),
		Users: Users{
			Scheduled: res.UsersScheduled,
			Started:   res.UsersStarted,
			Completed: res.UsersCompleted,
			Failed:    res.UsersFailed,
			Cancelled: res.UsersCancelled,
		},
		Global: rowOf(assertion.Summarize(res.Samples, ""), "Global", ps, res.Duration),
	}
	for _, sum := range assertion.ByRequest(res.Samples) {
		rep.Requests = append(rep.Requests, rowOf(sum, sum.Name, ps, res.Duration))
	}
	rep.Failures = failures(res.Samples)
	for _, a := range res.Assertions {
		rep.Assertions = append(rep.Assertions, AssertionOutcome{
			Description: a.Assertion.String(),
			Value:       a.Value,
			Passed:      a.Passed,
			Empty:       a.Empty,
		})
	}
	return rep
}

func rowOf(sum assertion.Summary, name string, ps []float64, d time.Duration) RequestStats {
	row := RequestStats{
		Name:      name,
		Count:     sum.Count,
		OK:        sum.OK,
		KO:        sum.KO,
		Cancelled: sum.Cancelled,
		Min:       sum.Min(),
		Mean:      sum.Mean(),
		Max:       sum.Max(),
	}
	for _, p := range ps {
		row.Percentiles = append(row.Percentiles, Percentile{P: p, Ms: sum.Percentile(p)})
	}
	if d > 0 {
		row.RPS = float64(sum.Count) / d.Seconds()
	}
	return row
}

func mergePercentiles(base, extra []float64) []float64 {
	seen := map[float64]bool{}
	var out []float64
	for _, p := range append(append([]float64(nil), base...), extra...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Float64s(out)
	return out
}

// failures counts KO errors per request, most frequent first.
func failures(samples []stats.Sample) []Failure {
	type key struct{ req, err string }
	counts := map[key]int{}
	for _, s := range samples {
		if s.Status == stats.KO {
			counts[key{s.Name, s.Error}]++
		}
	}
	out := make([]Failure, 0, len(counts))
	for k, n := range counts {
		out = append(out, Failure{Request: k.req, Error: k.err, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Request != out[j].Request {
			return out[i].Request < out[j].Request
		}
		return out[i].Error < out[j].Error
	})
	return out
}

// Exit statuses of the run command.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitFatal  = 2
)

// ExitCode is ExitOK when every assertion passed.
func ExitCode(res *runner.Result) int {
	if res.Passed() {
		return ExitOK
	}
	return ExitFailed
}
