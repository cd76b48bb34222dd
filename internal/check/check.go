// Package check validates responses and extracts values from them into
// the virtual user's session.
package check

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"chainq/internal/failure"
	"chainq/internal/protocol"
	"chainq/internal/session"
)

// Check validates a response. On success it returns the session with any
// extracted values; on failure it returns a CheckFailed error.
type Check interface {
	Check(resp *protocol.Response, s session.Session, rnd *rand.Rand) (session.Session, error)
	String() string
}

// StatusCheck accepts or rejects the response status code.
type StatusCheck struct {
	desc   string
	accept func(code int, s session.Session, rnd *rand.Rand) bool
}

// StatusIs accepts any of codes.
func StatusIs(codes ...int) *StatusCheck {
	strs := make([]string, len(codes))
	for i, c := range codes {
		strs[i] = strconv.Itoa(c)
	}
	return &StatusCheck{
		desc: "status.in(" + strings.Join(strs, ",") + ")",
		accept: func(code int, _ session.Session, _ *rand.Rand) bool {
			for _, c := range codes {
				if c == code {
					return true
				}
			}
			return false
		},
	}
}

// StatusMatches accepts codes for which fn returns true. fn gets the user's
// random source so that randomized policies stay reproducible.
func StatusMatches(desc string, fn func(code int, s session.Session, rnd *rand.Rand) bool) *StatusCheck {
	return &StatusCheck{desc: "status." + desc, accept: fn}
}

// DefaultStatus is applied to requests that carry no status check of their own.
func DefaultStatus() *StatusCheck {
	return &StatusCheck{
		desc: "status.find.in(200 to 210, 304)",
		accept: func(code int, _ session.Session, _ *rand.Rand) bool {
			return (code >= 200 && code <= 210) || code == 304
		},
	}
}

func (c *StatusCheck) Check(resp *protocol.Response, s session.Session, rnd *rand.Rand) (session.Session, error) {
	if c.accept(resp.Status, s, rnd) {
		return s, nil
	}
	return s, failure.New(failure.CheckFailed, c.desc, "but actually found %d", resp.Status)
}

func (c *StatusCheck) String() string { return c.desc }

// HasStatusCheck reports whether checks already validate the status code.
func HasStatusCheck(checks []Check) bool {
	for _, c := range checks {
		if _, ok := c.(*StatusCheck); ok {
			return true
		}
	}
	return false
}

// Find extracts one value and optionally validates or saves it.
type Find struct {
	kind     string
	detail   string
	query    session.Expr
	lookup   func(resp *protocol.Response, query string) (string, bool, error)
	saveAs   string
	expected *session.Expr
	optional bool
}

// Extractor pulls a value out of a response body. found is false when
// nothing matches the query.
type Extractor interface {
	Extract(body []byte, query string) (value string, found bool, err error)
}

// FromBody builds a Find check over any body Extractor.
func FromBody(kind, query string, ex Extractor) *Find {
	return &Find{
		kind:  kind,
		query: session.Compile(query),
		lookup: func(resp *protocol.Response, q string) (string, bool, error) {
			return ex.Extract(resp.Body, q)
		},
	}
}

// CSS selects the first element matching selector. With an attribute the
// attribute value is extracted, otherwise the element text.
func CSS(selector string, attribute ...string) *Find {
	ex := HTMLExtractor{}
	if len(attribute) > 0 {
		ex.Attribute = attribute[0]
	}
	f := FromBody("css", selector, ex)
	f.detail = ex.Attribute
	return f
}

// JMESPath evaluates expr against a JSON body.
func JMESPath(expr string) *Find {
	return FromBody("jmesPath", expr, JMESPathExtractor{})
}

// Header extracts a response header.
func Header(name string) *Find {
	return &Find{
		kind:  "header",
		query: session.Compile(name),
		lookup: func(resp *protocol.Response, q string) (string, bool, error) {
			vs, ok := resp.Headers[http.CanonicalHeaderKey(q)]
			if !ok || len(vs) == 0 {
				return "", false, nil
			}
			return vs[0], true, nil
		},
	}
}

// SaveAs stores the extracted value under name.
func (f *Find) SaveAs(name string) *Find {
	f.saveAs = name
	return f
}

// Is requires the extracted value to equal expected (which may hold placeholders).
func (f *Find) Is(expected string) *Find {
	e := session.Compile(expected)
	f.expected = &e
	return f
}

// Optional lets the check pass when nothing is found.
func (f *Find) Optional() *Find {
	f.optional = true
	return f
}

func (f *Find) Check(resp *protocol.Response, s session.Session, rnd *rand.Rand) (session.Session, error) {
	q, err := f.query.Resolve(s, rnd)
	if err != nil {
		return s, err
	}
	v, found, err := f.lookup(resp, q)
	if err != nil {
		return s, failure.Wrap(failure.CheckFailed, f.describe(q), err)
	}
	if !found {
		if f.optional {
			return s, nil
		}
		return s, failure.New(failure.CheckFailed, f.describe(q), "find.exists, found nothing")
	}
	if f.expected != nil {
		want, err := f.expected.Resolve(s, rnd)
		if err != nil {
			return s, err
		}
		if v != want {
			return s, failure.New(failure.CheckFailed, f.describe(q), "find.is(%s), but actually found %s", want, v)
		}
	}
	if f.saveAs != "" {
		s = s.Set(f.saveAs, v)
	}
	return s, nil
}

func (f *Find) String() string { return f.describe(f.query.Raw()) }

func (f *Find) describe(q string) string {
	if f.detail != "" {
		return fmt.Sprintf("%s(%s, %s)", f.kind, q, f.detail)
	}
	return fmt.Sprintf("%s(%s)", f.kind, q)
}

// Run applies checks in order. The first failure stops evaluation; values
// extracted by earlier checks are then discarded with the returned session
// being the one passed in.
func Run(checks []Check, resp *protocol.Response, s session.Session, rnd *rand.Rand) (session.Session, error) {
	next := s
	for _, c := range checks {
		var err error
		next, err = c.Check(resp, next, rnd)
		if err != nil {
			return s, err
		}
	}
	return next, nil
}
