package protocol

import (
	"net/http"
	"net/url"
	"strings"

	"chainq/internal/failure"
)

// Protocol is the per-run HTTP configuration shared read-only by every
// virtual user.
type Protocol struct {
	BaseURL string
	Headers http.Header
}

// HTTP starts a protocol definition on baseURL.
func HTTP(baseURL string) *Protocol {
	return &Protocol{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Headers: http.Header{},
	}
}

func (p *Protocol) Header(name, value string) *Protocol {
	p.Headers.Set(name, value)
	return p
}

func (p *Protocol) AcceptHeader(v string) *Protocol { return p.Header("Accept", v) }

func (p *Protocol) AcceptLanguageHeader(v string) *Protocol {
	return p.Header("Accept-Language", v)
}

func (p *Protocol) AcceptEncodingHeader(v string) *Protocol {
	return p.Header("Accept-Encoding", v)
}

func (p *Protocol) UserAgentHeader(v string) *Protocol { return p.Header("User-Agent", v) }

// Validate checks the base URL. It is called once before the run starts.
func (p *Protocol) Validate() error {
	if p.BaseURL == "" {
		return failure.New(failure.Config, "baseUrl", "base URL is required")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return failure.Wrap(failure.Config, "baseUrl", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return failure.New(failure.Config, "baseUrl", "unsupported scheme %q in %s", u.Scheme, p.BaseURL)
	}
	if u.Host == "" {
		return failure.New(failure.Config, "baseUrl", "missing host in %s", p.BaseURL)
	}
	return nil
}

// Resolve joins a request path onto the base URL. Absolute URLs pass through.
func (p *Protocol) Resolve(target string) (string, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if target == "" {
		return p.BaseURL + "/", nil
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	full := p.BaseURL + target
	if _, err := url.Parse(full); err != nil {
		return "", err
	}
	return full, nil
}

// MergeHeaders returns the protocol headers overridden by per-request ones.
func (p *Protocol) MergeHeaders(overrides http.Header) http.Header {
	out := p.Headers.Clone()
	if out == nil {
		out = http.Header{}
	}
	for k, vs := range overrides {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
