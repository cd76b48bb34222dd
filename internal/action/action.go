// Package action holds the building blocks a virtual user executes: requests,
// pauses, feeds and the blocks that compose them (chains, loops, retries).
//
// Every action is a function of (session) -> (session, outcome). Actions are
// built once, before the run, and are never mutated afterwards, so one tree is
// shared by all virtual users of a scenario.
package action

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"

	"chainq/internal/failure"
	"chainq/internal/protocol"
	"chainq/internal/session"
	"chainq/internal/stats"
)

// Status says how the enclosing block must proceed.
type Status int

const (
	// Continue with the next action.
	Continue Status = iota
	// Failed ends the current segment. Loops and retries see it; a plain
	// chain records it as the session's pending failure and moves on.
	Failed
	// Exit terminates the virtual user.
	Exit
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Failed:
		return "failed"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// Outcome is the result of running an action.
type Outcome struct {
	Status Status
	Err    error
}

func ok() Outcome { return Outcome{Status: Continue} }

func failed(err error) Outcome { return Outcome{Status: Failed, Err: err} }

func exit(err error) Outcome { return Outcome{Status: Exit, Err: err} }

func cancelled(err error) Outcome {
	if failure.IsKind(err, failure.Cancelled) {
		return exit(err)
	}
	return exit(failure.Wrap(failure.Cancelled, "", err))
}

// Recorder stores request samples.
type Recorder interface {
	Record(stats.Sample)
}

// Env is everything a virtual user's actions need from the engine.
type Env struct {
	Protocol  *protocol.Protocol
	Transport protocol.Transport
	Recorder  Recorder
	Rand      *rand.Rand
	Log       logrus.FieldLogger

	// PauseScale multiplies every pause. Zero means 1.
	PauseScale float64

	// interrupt is set inside loop and retry bodies: the first failure
	// ends the body instead of being recorded and skipped.
	interrupt bool
}

func (e *Env) interrupting() *Env {
	if e.interrupt {
		return e
	}
	inner := *e
	inner.interrupt = true
	return &inner
}

func (e *Env) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Action is one step of a scenario.
type Action interface {
	Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome)
}

// Func adapts a plain function into an Action.
type Func func(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome)

func (f Func) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	return f(ctx, env, s)
}

// SessionFunc runs fn against the session. An error fails the action.
func SessionFunc(fn func(s session.Session) (session.Session, error)) Action {
	return Func(func(_ context.Context, _ *Env, s session.Session) (session.Session, Outcome) {
		next, err := fn(s)
		if err != nil {
			return s, failed(err)
		}
		return next, ok()
	})
}

// ExitIfFailed terminates the virtual user when a failure is pending.
type ExitIfFailed struct{}

func (ExitIfFailed) Run(_ context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	if !s.Failed() {
		return s, ok()
	}
	env.logger().WithFields(logrus.Fields{
		"scenario": s.Scenario(),
		"user":     s.UserID(),
		"error":    s.FailureReason(),
	}).Debug("exiting virtual user on pending failure")
	return s, exit(s.FailureReason())
}
