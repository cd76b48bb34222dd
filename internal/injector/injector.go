// Package injector turns open-model injection steps into start offsets.
package injector

import (
	"fmt"
	"math"
	"time"

	"chainq/internal/failure"
)

// Step starts Count users spread linearly over Duration.
type Step struct {
	Count    int
	Duration time.Duration
}

func (s Step) String() string {
	switch {
	case s.Count == 0:
		return fmt.Sprintf("nothingFor(%s)", s.Duration)
	case s.Duration == 0:
		return fmt.Sprintf("atOnceUsers(%d)", s.Count)
	}
	return fmt.Sprintf("rampUsers(%d).during(%s)", s.Count, s.Duration)
}

// Ramp is a pending rampUsers step waiting for its duration.
type Ramp struct {
	count int
}

// RampUsers starts n users over a duration given by During.
func RampUsers(n int) Ramp { return Ramp{count: n} }

func (r Ramp) During(d time.Duration) Step { return Step{Count: r.count, Duration: d} }

// AtOnceUsers starts n users at the step start.
func AtOnceUsers(n int) Step { return Step{Count: n} }

// NothingFor waits d before the next step.
func NothingFor(d time.Duration) Step { return Step{Duration: d} }

// ConstantUsersPerSec starts rate users per second for d.
func ConstantUsersPerSec(rate float64, d time.Duration) Step {
	n := int(math.Round(rate * d.Seconds()))
	if n < 0 {
		n = 0
	}
	return Step{Count: n, Duration: d}
}

// Schedule returns one offset per user, measured from the schedule origin.
// User i of a step with count users starts at stepStart + duration*i/count.
func Schedule(steps []Step) []time.Duration {
	offsets := make([]time.Duration, 0, Total(steps))
	var start time.Duration
	for _, st := range steps {
		for i := 0; i < st.Count; i++ {
			offsets = append(offsets, start+scale(st.Duration, i, st.Count))
		}
		start += st.Duration
	}
	return offsets
}

// scale computes d*i/n without overflowing for long steps.
func scale(d time.Duration, i, n int) time.Duration {
	if d == 0 || i == 0 {
		return 0
	}
	q, r := int64(d)/int64(n), int64(d)%int64(n)
	return time.Duration(q*int64(i) + r*int64(i)/int64(n))
}

// Total is the number of users the steps start.
func Total(steps []Step) int {
	n := 0
	for _, st := range steps {
		if st.Count > 0 {
			n += st.Count
		}
	}
	return n
}

// Duration is the length of the schedule.
func Duration(steps []Step) time.Duration {
	var d time.Duration
	for _, st := range steps {
		d += st.Duration
	}
	return d
}

// Validate rejects negative counts and durations.
func Validate(steps []Step) error {
	for i, st := range steps {
		if st.Count < 0 || st.Duration < 0 {
			return failure.New(failure.Config, "injection", "step %d (%s) has a negative count or duration", i, st)
		}
	}
	return nil
}
