package protocol

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"chainq/internal/failure"
)

// Request is a fully resolved request, ready to send.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is what checks see.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Transport sends one request and waits for its response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http implementation shared by all virtual users.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport builds a pooled client sized for many concurrent users.
// Redirects are followed; the sample covers the whole exchange.
func NewHTTPTransport(timeout time.Duration, insecure bool) *HTTPTransport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &HTTPTransport{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

// NoRedirects makes every 3xx response final instead of following it.
func (t *HTTPTransport) NoRedirects() *HTTPTransport {
	t.Client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return t
}

func (t *HTTPTransport) Send(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, failure.Wrap(failure.Transport, r.URL, err)
	}
	for k, vs := range r.Headers {
		req.Header[k] = vs
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, failure.Wrap(failure.Cancelled, r.URL, ctx.Err())
		}
		return nil, failure.Wrap(failure.Transport, r.URL, err)
	}
	defer resp.Body.Close()

	b, err := readBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, failure.Wrap(failure.Cancelled, r.URL, ctx.Err())
		}
		return nil, failure.Wrap(failure.Transport, r.URL, err)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    b,
	}, nil
}

// readBody decodes gzip and deflate bodies. net/http only does this on its
// own when it set Accept-Encoding itself, and protocols usually set it.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "deflate":
		fr := flate.NewReader(resp.Body)
		defer fr.Close()
		r = fr
	}
	return io.ReadAll(r)
}
