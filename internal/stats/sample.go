package stats

import (
	"time"

	"github.com/pkg/errors"
)

// Status is the outcome of one request.
type Status int

const (
	OK Status = iota
	KO
	Cancelled
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case KO:
		return "KO"
	case Cancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Sample is the record of one executed (or attempted) request.
type Sample struct {
	Name     string        `json:"name"`
	Scenario string        `json:"scenario"`
	UserID   string        `json:"user_id"`
	Start    time.Time     `json:"start"`
	Latency  time.Duration `json:"latency"`
	Status   Status        `json:"status"`
	Code     int           `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
	Bytes    int64         `json:"bytes"`
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "OK":
		*s = OK
	case "KO":
		*s = KO
	case "CANCELLED":
		*s = Cancelled
	default:
		return errors.Errorf("unknown sample status %q", b)
	}
	return nil
}
