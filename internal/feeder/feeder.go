package feeder

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"chainq/internal/failure"
)

// Record is one row of named fields.
type Record map[string]string

// Strategy selects how records are drawn.
type Strategy string

const (
	Random   Strategy = "random"   // uniform, with replacement, never ends
	Circular Strategy = "circular" // in order, wraps around
	Queue    Strategy = "queue"    // in order, then FeederExhausted
	Shuffle  Strategy = "shuffle"  // random without replacement, then FeederExhausted
)

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Random, Circular, Queue, Shuffle:
		return st, nil
	case "":
		return Random, nil
	}
	return "", failure.New(failure.Config, "feeder.strategy", "unknown feeder strategy %q", s)
}

// Feeder hands out records to competing virtual users. Every draw holds
// the lock for the whole selection and returns a copy.
type Feeder struct {
	name     string
	strategy Strategy
	records  []Record

	mu    sync.Mutex
	rnd   *rand.Rand
	next  int
	order []int
}

// New builds a feeder over records. seed makes random and shuffle
// strategies reproducible.
func New(name string, records []Record, strategy Strategy, seed int64) (*Feeder, error) {
	if len(records) == 0 {
		return nil, failure.New(failure.FeederLoad, name, "feeder has no records")
	}
	f := &Feeder{
		name:     name,
		strategy: strategy,
		records:  records,
		rnd:      rand.New(rand.NewSource(seed)),
	}
	if strategy == Shuffle {
		f.order = f.rnd.Perm(len(records))
	}
	return f, nil
}

func (f *Feeder) Name() string { return f.name }

func (f *Feeder) Strategy() Strategy { return f.strategy }

// Len is the number of loaded records.
func (f *Feeder) Len() int { return len(f.records) }

// Next draws one record according to the strategy.
func (f *Feeder) Next() (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var idx int
	switch f.strategy {
	case Random:
		idx = f.rnd.Intn(len(f.records))
	case Circular:
		idx = f.next % len(f.records)
		f.next++
	case Queue:
		if f.next >= len(f.records) {
			return nil, f.exhausted()
		}
		idx = f.next
		f.next++
	case Shuffle:
		if f.next >= len(f.order) {
			return nil, f.exhausted()
		}
		idx = f.order[f.next]
		f.next++
	default:
		return nil, failure.New(failure.Config, f.name, "unknown feeder strategy %q", f.strategy)
	}
	return copyRecord(f.records[idx]), nil
}

// Reset rewinds sequential strategies and reshuffles.
func (f *Feeder) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = 0
	if f.strategy == Shuffle {
		f.order = f.rnd.Perm(len(f.records))
	}
}

func (f *Feeder) exhausted() error {
	return &failure.Error{
		Kind: failure.FeederExhausted,
		Op:   f.name,
		Err:  errors.Errorf("feeder is empty after %d records", len(f.records)),
	}
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
