package action

import (
	"context"
	"time"

	"chainq/internal/failure"
	"chainq/internal/feeder"
	"chainq/internal/session"
)

// Chain runs actions in order. It is itself an Action, so chains nest.
// Builder methods return a new Chain and leave the receiver as it was.
type Chain struct {
	actions []Action
}

// Exec starts a chain.
func Exec(actions ...Action) *Chain {
	return &Chain{actions: append([]Action(nil), actions...)}
}

func (c *Chain) with(actions ...Action) *Chain {
	next := make([]Action, 0, len(c.actions)+len(actions))
	next = append(next, c.actions...)
	next = append(next, actions...)
	return &Chain{actions: next}
}

func (c *Chain) Exec(actions ...Action) *Chain { return c.with(actions...) }

// Pause adds a fixed pause.
func (c *Chain) Pause(d time.Duration) *Chain { return c.with(Pause(d)) }

// PauseBetween adds a uniformly random pause in [min, max].
func (c *Chain) PauseBetween(min, max time.Duration) *Chain {
	return c.with(PauseBetween(min, max))
}

func (c *Chain) Feed(f *feeder.Feeder) *Chain { return c.with(Feed(f)) }

// ExitHereIfFailed ends the virtual user if a failure is pending.
func (c *Chain) ExitHereIfFailed() *Chain { return c.with(ExitIfFailed{}) }

// Len is the number of direct children.
func (c *Chain) Len() int { return len(c.actions) }

func (c *Chain) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	for _, a := range c.actions {
		if err := ctx.Err(); err != nil {
			return s, cancelled(err)
		}
		var out Outcome
		s, out = a.Run(ctx, env, s)
		switch out.Status {
		case Exit:
			return s, out
		case Failed:
			if env.interrupt {
				return s, out
			}
			s = s.MarkFailed(out.Err)
		}
	}
	return s, ok()
}

type pause struct {
	min, max time.Duration
}

// Pause suspends only the calling virtual user for d.
func Pause(d time.Duration) Action { return pause{min: d, max: d} }

// PauseBetween suspends for a uniformly random duration in [min, max],
// drawn from the user's random source.
func PauseBetween(min, max time.Duration) Action {
	if max < min {
		min, max = max, min
	}
	return pause{min: min, max: max}
}

func (p pause) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	d := p.min
	if p.max > p.min && env.Rand != nil {
		d += time.Duration(env.Rand.Int63n(int64(p.max-p.min) + 1))
	}
	if env.PauseScale > 0 {
		d = time.Duration(float64(d) * env.PauseScale)
	}
	if d <= 0 {
		return s, ok()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return s, cancelled(ctx.Err())
	case <-timer.C:
		return s, ok()
	}
}

type feed struct {
	f *feeder.Feeder
}

// Feed draws one record and merges its fields into the session.
func Feed(f *feeder.Feeder) Action { return feed{f: f} }

func (a feed) Run(_ context.Context, _ *Env, s session.Session) (session.Session, Outcome) {
	rec, err := a.f.Next()
	if err != nil {
		return s, failed(err)
	}
	return s.SetAll(rec), ok()
}

// Loop runs its body a fixed number of times.
type Loop struct {
	times   int
	counter string
	body    *Chain
}

// Repeat builds a loop; the counter variable holds 0..times-1 during the
// body and is removed afterwards.
func Repeat(times int, counter string) *Loop {
	if counter == "" {
		counter = "i"
	}
	return &Loop{times: times, counter: counter}
}

// On sets the loop body.
func (l *Loop) On(actions ...Action) *Loop {
	return &Loop{times: l.times, counter: l.counter, body: Exec(actions...)}
}

func (l *Loop) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	if l.body == nil {
		return s, ok()
	}
	inner := env.interrupting()
	for i := 0; i < l.times; i++ {
		var out Outcome
		s, out = l.body.Run(ctx, inner, s.Set(l.counter, i))
		if out.Status != Continue {
			return s.Remove(l.counter), out
		}
	}
	return s.Remove(l.counter), ok()
}

// Retry runs its body up to a number of attempts until one succeeds.
type Retry struct {
	attempts int
	counter  string
	body     *Chain
}

// TryMax retries the body up to attempts times, immediately and without
// backoff. The optional counter variable holds the attempt index.
func TryMax(attempts int, counter ...string) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	r := &Retry{attempts: attempts}
	if len(counter) > 0 {
		r.counter = counter[0]
	}
	return r
}

// On sets the retried body.
func (r *Retry) On(actions ...Action) *Retry {
	return &Retry{attempts: r.attempts, counter: r.counter, body: Exec(actions...)}
}

// Attempts is the maximum number of body executions.
func (r *Retry) Attempts() int { return r.attempts }

func (r *Retry) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	if r.body == nil {
		return s, ok()
	}
	inner := env.interrupting()
	entry := s.ClearFailure()
	last := s
	var lastOut Outcome
	for attempt := 0; attempt < r.attempts; attempt++ {
		try := entry
		if r.counter != "" {
			try = try.Set(r.counter, attempt)
		}
		next, out := r.body.Run(ctx, inner, try)
		if r.counter != "" {
			next = next.Remove(r.counter)
		}
		switch out.Status {
		case Continue:
			return next, out
		case Exit:
			return next, out
		}
		last, lastOut = next, out
		if err := ctx.Err(); err != nil {
			return last, cancelled(err)
		}
	}
	if lastOut.Err == nil {
		lastOut.Err = failure.New(failure.Unknown, "tryMax", "all %d attempts failed", r.attempts)
	}
	return last, failed(lastOut.Err)
}

// Conditional runs its body only when the condition holds.
type Conditional struct {
	cond func(s session.Session) bool
	then *Chain
	els  *Chain
}

// DoIf runs the body when cond returns true for the current session.
func DoIf(cond func(s session.Session) bool) *Conditional {
	return &Conditional{cond: cond}
}

// DoIfEquals runs the body when the session variable name equals value.
func DoIfEquals(name, value string) *Conditional {
	return DoIf(func(s session.Session) bool {
		v, ok := s.GetString(name)
		return ok && v == value
	})
}

func (c *Conditional) Then(actions ...Action) *Conditional {
	return &Conditional{cond: c.cond, then: Exec(actions...), els: c.els}
}

func (c *Conditional) Else(actions ...Action) *Conditional {
	return &Conditional{cond: c.cond, then: c.then, els: Exec(actions...)}
}

func (c *Conditional) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	branch := c.els
	if c.cond(s) {
		branch = c.then
	}
	if branch == nil {
		return s, ok()
	}
	return branch.Run(ctx, env, s)
}
