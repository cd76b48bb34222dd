package runner

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chainq/internal/action"
	"chainq/internal/assertion"
	"chainq/internal/failure"
	"chainq/internal/injector"
	"chainq/internal/session"
	"chainq/internal/stats"
)

const defaultTick = 200 * time.Millisecond

type Runner struct {
	Sim       Simulation
	Opts      Options
	Collector *stats.Collector

	runID string
	log   logrus.FieldLogger
	start time.Time

	inflight  int64
	started   int64
	completed int64
	failed    int64
	cancelled int64

	// Event Channel
	Updates StatsUpdateChan
}

// NewRunner validates the simulation. Every error it returns is fatal.
func NewRunner(sim Simulation, opts Options, updates StatsUpdateChan) (*Runner, error) {
	if sim.Protocol == nil {
		return nil, failure.New(failure.Config, "simulation", "no protocol configured")
	}
	if err := sim.Protocol.Validate(); err != nil {
		return nil, err
	}
	if len(sim.Populations) == 0 {
		return nil, failure.New(failure.Config, "simulation", "no population to run")
	}
	for _, p := range sim.Populations {
		if p.Chain == nil {
			return nil, failure.New(failure.Config, "simulation", "population %q has no scenario chain", p.Scenario)
		}
		if err := injector.Validate(p.Steps); err != nil {
			return nil, err
		}
	}
	if opts.Transport == nil {
		return nil, failure.New(failure.Config, "simulation", "no transport configured")
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTick
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	runID := uuid.New().String()
	return &Runner{
		Sim:       sim,
		Opts:      opts,
		Collector: stats.NewCollector(opts.Observers...),
		runID:     runID,
		log:       opts.Log.WithField("run", runID),
		Updates:   updates,
	}, nil
}

// RunID identifies this run in logs and history.
func (r *Runner) RunID() string { return r.runID }

// StartTickLoop starts a goroutine that pushes stats updates. The returned
// channel is closed once the loop has stopped.
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate(false)
			}
		}
	}()
	return done
}

func (r *Runner) Snapshot() StatsSnapshot {
	live := r.Collector.Live()
	s := StatsSnapshot{
		Requests:  atomic.LoadUint64(&live.Requests),
		Success:   atomic.LoadUint64(&live.Success),
		Fail:      atomic.LoadUint64(&live.Fail),
		Cancelled: atomic.LoadUint64(&live.Cancelled),
		Bytes:     atomic.LoadUint64(&live.Bytes),
		Inflight:  atomic.LoadInt64(&r.inflight),
		Started:   atomic.LoadInt64(&r.started),
		Scheduled: r.Sim.Users(),
		Expected:  r.expected(),
		P50Ms:     live.P50(),
		P90Ms:     live.P90(),
		P95Ms:     live.P95(),
		P99Ms:     live.P99(),
		MaxMs:     live.ResponseTime.MaxMs(),
		ErrorRate: live.ErrorRate(),
	}
	if !r.start.IsZero() {
		s.Elapsed = time.Since(r.start)
	}
	return s
}

func (r *Runner) expected() time.Duration {
	var longest time.Duration
	for _, p := range r.Sim.Populations {
		if d := injector.Duration(p.Steps); d > longest {
			longest = d
		}
	}
	if r.Opts.MaxDuration > 0 && r.Opts.MaxDuration < longest {
		return r.Opts.MaxDuration
	}
	return longest
}

func (r *Runner) sendUpdate(done bool) {
	s := r.Snapshot()
	s.Done = done

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run executes the simulation and blocks until every user has finished or
// the run is aborted. Aborted runs still return a result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if r.Opts.MaxDuration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.Opts.MaxDuration)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if r.Sim.Before != nil {
		r.Sim.Before(r.log)
	}

	r.start = time.Now()
	r.log.WithFields(logrus.Fields{
		"simulation": r.Sim.Name,
		"users":      r.Sim.Users(),
		"seed":       r.Opts.Seed,
	}).Info("run started")

	// Start Tick Loop for UI
	tickCtx, stopTicks := context.WithCancel(context.Background())
	ticking := r.StartTickLoop(tickCtx, r.Opts.TickInterval)

	var wg sync.WaitGroup
	var dropped int64
	index := 0
	for _, p := range r.Sim.Populations {
		offsets := injector.Schedule(p.Steps)
		wg.Add(1)
		go func(p Population, offsets []time.Duration, base int) {
			defer wg.Done()
			n := r.inject(runCtx, &wg, p, offsets, base)
			atomic.AddInt64(&dropped, int64(n))
		}(p, offsets, index)
		index += len(offsets)
	}
	wg.Wait()
	stopTicks()
	<-ticking

	res := &Result{
		RunID:          r.runID,
		Simulation:     r.Sim.Name,
		Seed:           r.Opts.Seed,
		Start:          r.start,
		Duration:       time.Since(r.start),
		Samples:        r.Collector.Freeze(),
		DroppedSamples: r.Collector.Dropped(),
		UsersScheduled: r.Sim.Users(),
		UsersStarted:   int(atomic.LoadInt64(&r.started)),
		UsersCompleted: int(atomic.LoadInt64(&r.completed)),
		UsersFailed:    int(atomic.LoadInt64(&r.failed)),
		UsersCancelled: int(atomic.LoadInt64(&r.cancelled)),
		Aborted:        runCtx.Err() != nil,
	}
	res.Assertions = assertion.Evaluate(res.Samples, r.Sim.Assertions)
	r.sendUpdate(true)

	entry := r.log.WithFields(logrus.Fields{
		"duration":  res.Duration.Round(time.Millisecond),
		"requests":  len(res.Samples),
		"started":   res.UsersStarted,
		"failed":    res.UsersFailed,
		"cancelled": res.UsersCancelled,
		"dropped":   dropped,
		"late":      res.DroppedSamples,
	})
	if res.Aborted {
		entry.Warn("run aborted")
	} else {
		entry.Info("run finished")
	}
	return res, nil
}

// inject starts the population's users at origin+offset. Each wait is
// computed from the origin so late wakeups never accumulate. It returns the
// number of starts dropped by cancellation.
func (r *Runner) inject(ctx context.Context, wg *sync.WaitGroup, p Population, offsets []time.Duration, base int) int {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for i, off := range offsets {
		if wait := time.Until(r.start.Add(off)); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return len(offsets) - i
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return len(offsets) - i
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			r.runUser(ctx, p, index)
		}(base + i)
	}
	return 0
}

func (r *Runner) runUser(ctx context.Context, p Population, index int) {
	atomic.AddInt64(&r.started, 1)
	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	s := session.New(p.Scenario, uuid.New().String())
	log := r.log.WithFields(logrus.Fields{"scenario": p.Scenario, "user": s.UserID()})

	if p.Feeder != nil {
		rec, err := p.Feeder.Next()
		if err != nil {
			atomic.AddInt64(&r.failed, 1)
			log.WithError(err).Debug("user not started")
			return
		}
		s = s.SetAll(rec)
	}

	env := &action.Env{
		Protocol:   r.Sim.Protocol,
		Transport:  r.Opts.Transport,
		Recorder:   r.Collector,
		Rand:       rand.New(rand.NewSource(r.Opts.Seed + int64(index))),
		Log:        log,
		PauseScale: r.Opts.PauseScale,
	}

	s, out := p.Chain.Run(ctx, env, s)
	switch {
	case out.Status == action.Exit && failure.IsKind(out.Err, failure.Cancelled):
		atomic.AddInt64(&r.cancelled, 1)
		log.Debug("user cancelled")
	case out.Status != action.Continue || s.Failed():
		atomic.AddInt64(&r.failed, 1)
		err := out.Err
		if err == nil {
			err = s.FailureReason()
		}
		log.WithError(err).Debug("user finished with failure")
	default:
		atomic.AddInt64(&r.completed, 1)
	}
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}
