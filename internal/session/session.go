package session

import (
	"fmt"
	"sort"
	"strconv"
)

// Session is the state of one virtual user. It is a value: Set and the
// failure helpers return a new Session and never touch the receiver, so a
// Session handed to an action can be kept as a snapshot.
type Session struct {
	userID   string
	scenario string
	vars     map[string]interface{}
	failed   bool
	reason   error
}

func New(scenario, userID string) Session {
	return Session{
		userID:   userID,
		scenario: scenario,
		vars:     map[string]interface{}{"userId": userID},
	}
}

func (s Session) UserID() string { return s.userID }

func (s Session) Scenario() string { return s.scenario }

// Get returns the raw value stored under name.
func (s Session) Get(name string) (interface{}, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// GetString returns the value under name rendered as a string.
func (s Session) GetString(name string) (string, bool) {
	v, ok := s.vars[name]
	if !ok {
		return "", false
	}
	return Stringify(v), true
}

// GetInt returns the value under name as an int if it is numeric.
func (s Session) GetInt(name string) (int, bool) {
	switch v := s.vars[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func (s Session) Set(name string, value interface{}) Session {
	next := s.clone(1)
	next.vars[name] = value
	return next
}

// SetAll merges values into a copy of s.
func (s Session) SetAll(values map[string]string) Session {
	if len(values) == 0 {
		return s
	}
	next := s.clone(len(values))
	for k, v := range values {
		next.vars[k] = v
	}
	return next
}

func (s Session) Remove(name string) Session {
	if _, ok := s.vars[name]; !ok {
		return s
	}
	next := s.clone(0)
	delete(next.vars, name)
	return next
}

// Keys returns the variable names in sorted order.
func (s Session) Keys() []string {
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Failed reports whether an earlier action left a failure pending.
func (s Session) Failed() bool { return s.failed }

func (s Session) FailureReason() error { return s.reason }

// MarkFailed records a pending failure. ExitIfFailed acts on it.
func (s Session) MarkFailed(reason error) Session {
	next := s
	next.failed = true
	next.reason = reason
	return next
}

// ClearFailure drops the pending failure, as a new TryMax attempt does.
func (s Session) ClearFailure() Session {
	next := s
	next.failed = false
	next.reason = nil
	return next
}

func (s Session) clone(extra int) Session {
	next := s
	next.vars = make(map[string]interface{}, len(s.vars)+extra)
	for k, v := range s.vars {
		next.vars[k] = v
	}
	return next
}

// Stringify renders a session value the way it is substituted into requests.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
