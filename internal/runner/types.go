package runner

import (
	"time"

	"github.com/sirupsen/logrus"

	"chainq/internal/action"
	"chainq/internal/assertion"
	"chainq/internal/feeder"
	"chainq/internal/injector"
	"chainq/internal/protocol"
	"chainq/internal/stats"
)

// Population is one scenario and the injection profile driving it.
type Population struct {
	Scenario string
	Chain    action.Action
	Steps    []injector.Step

	// Feeder, when set, seeds every new session with one record.
	Feeder *feeder.Feeder
}

// Simulation is everything a run executes.
type Simulation struct {
	Name        string
	Protocol    *protocol.Protocol
	Populations []Population
	Assertions  []assertion.Assertion

	// Before runs once, before the first user starts.
	Before func(log logrus.FieldLogger)
}

// Users is the number of virtual users the simulation starts.
func (s Simulation) Users() int {
	n := 0
	for _, p := range s.Populations {
		n += injector.Total(p.Steps)
	}
	return n
}

// Options tune how the engine executes a simulation.
type Options struct {
	Transport protocol.Transport

	// Seed drives every per-user random source. Zero picks one from the clock.
	Seed int64

	// MaxDuration aborts the run when reached. Zero means no limit.
	MaxDuration time.Duration

	PauseScale float64

	// TickInterval is the live snapshot period. Zero means 200ms.
	TickInterval time.Duration

	Log       logrus.FieldLogger
	Observers []stats.Observer
}

// Result is the outcome of a finished run.
type Result struct {
	RunID      string
	Simulation string
	Seed       int64
	Start      time.Time
	Duration   time.Duration

	Samples    []stats.Sample
	Assertions []assertion.Result

	UsersScheduled int
	UsersStarted   int
	UsersCompleted int
	UsersFailed    int
	UsersCancelled int

	// DroppedSamples arrived after the samples were frozen and are not in
	// Samples.
	DroppedSamples int
	// Aborted is set when the run was cancelled or hit MaxDuration.
	Aborted bool
}

// Passed is true when every assertion passed.
func (r *Result) Passed() bool { return assertion.AllPassed(r.Assertions) }

// StatsSnapshot is sent over the updates channel while the run progresses.
type StatsSnapshot struct {
	Requests  uint64
	Success   uint64
	Fail      uint64
	Cancelled uint64
	Bytes     uint64

	Inflight  int64
	Started   int64
	Scheduled int
	Elapsed   time.Duration
	Expected  time.Duration

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P90Ms float64
	P95Ms float64
	P99Ms float64
	MaxMs float64

	ErrorRate float64
	Done      bool
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot
