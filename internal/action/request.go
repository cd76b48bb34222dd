package action

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"chainq/internal/check"
	"chainq/internal/failure"
	"chainq/internal/protocol"
	"chainq/internal/session"
	"chainq/internal/stats"
)

type param struct {
	name  string
	value session.Expr
}

// Request is an HTTP request step. Build it with HTTP(name).Get(...) and
// friends; every string may hold #{...} placeholders.
type Request struct {
	name    session.Expr
	method  string
	url     session.Expr
	headers []param
	query   []param
	form    []param
	body    *session.Expr
	checks  []check.Check
}

// HTTP starts a request named name. The name shows up in samples and reports.
func HTTP(name string) *Request {
	return &Request{name: session.Compile(name), method: http.MethodGet, url: session.Compile("/")}
}

func (r *Request) Method(method, target string) *Request {
	r.method = method
	r.url = session.Compile(target)
	return r
}

func (r *Request) Get(target string) *Request { return r.Method(http.MethodGet, target) }
func (r *Request) Post(target string) *Request { return r.Method(http.MethodPost, target) }
func (r *Request) Put(target string) *Request { return r.Method(http.MethodPut, target) }
func (r *Request) Delete(target string) *Request { return r.Method(http.MethodDelete, target) }

// Header overrides a protocol header for this request.
func (r *Request) Header(name, value string) *Request {
	r.headers = append(r.headers, param{http.CanonicalHeaderKey(name), session.Compile(value)})
	return r
}

func (r *Request) QueryParam(name, value string) *Request {
	r.query = append(r.query, param{name, session.Compile(value)})
	return r
}

// FormParam adds a url-encoded form field; the body becomes the form.
func (r *Request) FormParam(name, value string) *Request {
	r.form = append(r.form, param{name, session.Compile(value)})
	return r
}

func (r *Request) Body(text string) *Request {
	b := session.Compile(text)
	r.body = &b
	return r
}

func (r *Request) Check(checks ...check.Check) *Request {
	r.checks = append(r.checks, checks...)
	return r
}

// Checks returns the checks run on the response, including the implicit
// status check added when none is declared.
func (r *Request) Checks() []check.Check {
	if check.HasStatusCheck(r.checks) {
		return r.checks
	}
	return append([]check.Check{check.DefaultStatus()}, r.checks...)
}

// Name is the unresolved request name.
func (r *Request) Name() string { return r.name.Raw() }

func (r *Request) Run(ctx context.Context, env *Env, s session.Session) (session.Session, Outcome) {
	name, err := r.name.Resolve(s, env.Rand)
	if err != nil {
		name = r.name.Raw()
	}

	sample := stats.Sample{
		Name:     name,
		Scenario: s.Scenario(),
		UserID:   s.UserID(),
		Start:    time.Now(),
	}

	req, err := r.build(env, s)
	if err != nil {
		return s, r.finish(env, sample, s, err)
	}

	resp, err := env.Transport.Send(ctx, req)
	sample.Latency = time.Since(sample.Start)
	if err != nil {
		if ctx.Err() != nil && !failure.IsKind(err, failure.Cancelled) {
			err = failure.Wrap(failure.Cancelled, name, ctx.Err())
		}
		return s, r.finish(env, sample, s, err)
	}
	sample.Code = resp.Status
	sample.Bytes = int64(len(resp.Body))

	next, err := check.Run(r.Checks(), resp, s, env.Rand)
	if err != nil {
		return s, r.finish(env, sample, s, err)
	}
	return next, r.finish(env, sample, s, nil)
}

// finish records exactly one sample for the request and maps err to an outcome.
func (r *Request) finish(env *Env, sample stats.Sample, s session.Session, err error) Outcome {
	switch {
	case err == nil:
		sample.Status = stats.OK
	case failure.IsKind(err, failure.Cancelled):
		sample.Status = stats.Cancelled
		sample.Error = err.Error()
	default:
		sample.Status = stats.KO
		sample.Error = err.Error()
	}
	if env.Recorder != nil {
		env.Recorder.Record(sample)
	}

	if err == nil {
		return ok()
	}
	env.logger().WithFields(logrus.Fields{
		"scenario": s.Scenario(),
		"user":     s.UserID(),
		"request":  sample.Name,
		"error":    err,
	}).Debug("request failed")
	if sample.Status == stats.Cancelled {
		return cancelled(err)
	}
	return failed(err)
}

// build resolves every placeholder. A missing variable fails the request
// before anything is sent.
func (r *Request) build(env *Env, s session.Session) (*protocol.Request, error) {
	target, err := r.url.Resolve(s, env.Rand)
	if err != nil {
		return nil, err
	}
	full, err := env.Protocol.Resolve(target)
	if err != nil {
		return nil, failure.Wrap(failure.Interpolation, target, err)
	}

	if len(r.query) > 0 {
		q, err := encodeParams(r.query, s, env)
		if err != nil {
			return nil, err
		}
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + q
	}

	overrides := http.Header{}
	for _, h := range r.headers {
		v, err := h.value.Resolve(s, env.Rand)
		if err != nil {
			return nil, err
		}
		overrides.Set(h.name, v)
	}

	var body []byte
	switch {
	case len(r.form) > 0:
		f, err := encodeParams(r.form, s, env)
		if err != nil {
			return nil, err
		}
		body = []byte(f)
		if overrides.Get("Content-Type") == "" {
			overrides.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case r.body != nil:
		b, err := r.body.Resolve(s, env.Rand)
		if err != nil {
			return nil, err
		}
		body = []byte(b)
	}

	return &protocol.Request{
		Method:  r.method,
		URL:     full,
		Headers: env.Protocol.MergeHeaders(overrides),
		Body:    body,
	}, nil
}

// encodeParams keeps declaration order, unlike url.Values.Encode.
func encodeParams(params []param, s session.Session, env *Env) (string, error) {
	var b strings.Builder
	for i, p := range params {
		v, err := p.value.Resolve(s, env.Rand)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String(), nil
}
