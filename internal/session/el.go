package session

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"chainq/internal/failure"
)

// Expr is a compiled string with #{...} placeholders.
//
// A placeholder holds either a session variable name (#{searchCriterion})
// or one of the built-in functions:
//
//	#{randomUuid()}         a fresh random UUID
//	#{randomInt(min,max)}   uniform integer in [min, max)
//	#{currentTimeMillis()}  unix time in milliseconds
type Expr struct {
	raw   string
	parts []part
	err   error
}

type part struct {
	literal string
	name    string // variable name, empty for literals
	fn      string // builtin function name
	args    []string
}

// Compile parses text once so that it can be resolved per virtual user.
// A malformed expression is not reported here: Resolve returns the error.
func Compile(text string) Expr {
	e := Expr{raw: text}
	rest := text
	for {
		i := strings.Index(rest, "#{")
		if i < 0 {
			if rest != "" {
				e.parts = append(e.parts, part{literal: rest})
			}
			return e
		}
		if i > 0 {
			e.parts = append(e.parts, part{literal: rest[:i]})
		}
		rest = rest[i+2:]
		j := strings.IndexByte(rest, '}')
		if j < 0 {
			e.err = failure.New(failure.Interpolation, text, "unterminated placeholder")
			return e
		}
		p, err := parsePlaceholder(strings.TrimSpace(rest[:j]))
		if err != nil {
			e.err = failure.Wrap(failure.Interpolation, text, err)
			return e
		}
		e.parts = append(e.parts, p)
		rest = rest[j+1:]
	}
}

func parsePlaceholder(body string) (part, error) {
	if body == "" {
		return part{}, failure.New(failure.Interpolation, "", "empty placeholder")
	}
	open := strings.IndexByte(body, '(')
	if open < 0 {
		return part{name: body}, nil
	}
	if !strings.HasSuffix(body, ")") {
		return part{}, failure.New(failure.Interpolation, body, "malformed function call")
	}
	fn := body[:open]
	var args []string
	if inner := strings.TrimSpace(body[open+1 : len(body)-1]); inner != "" {
		for _, a := range strings.Split(inner, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	switch fn {
	case "randomUuid", "currentTimeMillis":
		if len(args) != 0 {
			return part{}, failure.New(failure.Interpolation, body, "%s takes no arguments", fn)
		}
	case "randomInt":
		if len(args) != 2 {
			return part{}, failure.New(failure.Interpolation, body, "randomInt takes two arguments")
		}
	default:
		return part{}, failure.New(failure.Interpolation, body, "unknown function %q", fn)
	}
	return part{fn: fn, args: args}, nil
}

// Raw returns the uncompiled text.
func (e Expr) Raw() string { return e.raw }

// Static reports whether the expression contains no placeholder.
func (e Expr) Static() bool {
	if e.err != nil {
		return false
	}
	for _, p := range e.parts {
		if p.name != "" || p.fn != "" {
			return false
		}
	}
	return true
}

// Resolve substitutes placeholders from s. A variable missing from the
// session fails with an InterpolationError.
func (e Expr) Resolve(s Session, rnd *rand.Rand) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if len(e.parts) == 1 && e.parts[0].name == "" && e.parts[0].fn == "" {
		return e.parts[0].literal, nil
	}
	var b strings.Builder
	for _, p := range e.parts {
		switch {
		case p.name != "":
			v, ok := s.GetString(p.name)
			if !ok {
				return "", failure.New(failure.Interpolation, e.raw, "no attribute named '%s' is defined", p.name)
			}
			b.WriteString(v)
		case p.fn != "":
			v, err := callBuiltin(p, rnd)
			if err != nil {
				return "", failure.Wrap(failure.Interpolation, e.raw, err)
			}
			b.WriteString(v)
		default:
			b.WriteString(p.literal)
		}
	}
	return b.String(), nil
}

// Interpolate compiles and resolves text in one step.
func Interpolate(text string, s Session, rnd *rand.Rand) (string, error) {
	return Compile(text).Resolve(s, rnd)
}

func callBuiltin(p part, rnd *rand.Rand) (string, error) {
	switch p.fn {
	case "randomUuid":
		return uuid.New().String(), nil
	case "currentTimeMillis":
		return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
	case "randomInt":
		lo, err := strconv.Atoi(p.args[0])
		if err != nil {
			return "", err
		}
		hi, err := strconv.Atoi(p.args[1])
		if err != nil {
			return "", err
		}
		if hi <= lo {
			return "", failure.New(failure.Interpolation, "randomInt", "max %d must be greater than min %d", hi, lo)
		}
		if rnd == nil {
			return strconv.Itoa(lo + rand.Intn(hi-lo)), nil
		}
		return strconv.Itoa(lo + rnd.Intn(hi-lo)), nil
	}
	return "", failure.New(failure.Interpolation, p.fn, "unknown function")
}
