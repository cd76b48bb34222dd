package storage

import (
	"time"

	"chainq/internal/report"
)

// RunSummary is what the history keeps of one run.
type RunSummary struct {
	ID         string        `json:"id"`
	Simulation string        `json:"simulation"`
	Start      time.Time     `json:"start"`
	Duration   time.Duration `json:"duration"`
	Seed       int64         `json:"seed"`
	Users      int           `json:"users"`
	Requests   int           `json:"requests"`
	Failed     int           `json:"failed"`
	P95Ms      float64       `json:"p95_ms"`
	MaxMs      float64       `json:"max_ms"`
	Aborted    bool          `json:"aborted"`
	Passed     bool          `json:"passed"`
}

// FromReport extracts the summary of rep.
func FromReport(rep *report.Report) RunSummary {
	sum := RunSummary{
		ID:         rep.RunID,
		Simulation: rep.Simulation,
		Start:      rep.Start,
		Duration:   rep.Duration,
		Seed:       rep.Seed,
		Users:      rep.Users.Started,
		Requests:   rep.Global.Count,
		Failed:     rep.Global.KO,
		MaxMs:      rep.Global.Max,
		Aborted:    rep.Aborted,
		Passed:     rep.Passed,
	}
	for _, p := range rep.Global.Percentiles {
		if p.P == 95 {
			sum.P95Ms = p.Ms
		}
	}
	return sum
}
