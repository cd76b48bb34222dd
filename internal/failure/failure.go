package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an engine error.
type Kind int

const (
	Unknown Kind = iota
	Config
	FeederLoad
	Transport
	Interpolation
	CheckFailed
	FeederExhausted
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "ConfigError"
	case FeederLoad:
		return "FeederLoadError"
	case Transport:
		return "TransportError"
	case Interpolation:
		return "InterpolationError"
	case CheckFailed:
		return "CheckFailed"
	case FeederExhausted:
		return "FeederExhausted"
	case Cancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Fatal reports whether errors of this kind abort the run before it starts.
func (k Kind) Fatal() bool {
	return k == Config || k == FeederLoad
}

// Error is the typed error every engine component returns.
type Error struct {
	Kind Kind
	Op   string // what was being done, e.g. a request name or a config key
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of kind k with a formatted cause.
func New(k Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Op: op, Err: errors.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error. A nil err yields nil.
func Wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
