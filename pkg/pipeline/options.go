package pipeline

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/andesco/bundler/pkg/hostscope"
)

// RequestOptions describes one outbound fetch. A session owns its options
// exclusively; handlers mutate them in place or return a replacement.
type RequestOptions struct {
	URL    string
	Method string
	Header http.Header

	// Proxy is the address of an HTTP proxy the fetch is routed through.
	Proxy string

	FollowRedirects bool
	MaxRedirects    int
}

func NewRequestOptions(rawURL string) *RequestOptions {
	return &RequestOptions{
		URL:    rawURL,
		Method: http.MethodGet,
		Header: make(http.Header),
	}
}

// Clone returns a deep copy of o.
func (o *RequestOptions) Clone() *RequestOptions {
	c := *o
	c.Header = o.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

// ResourceFetcher fetches an embedded resource through the resource phases of
// the session that produced a Response.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, resourceURL string) (*Response, error)
}

// Response is a fetched document or resource as seen by the received phases.
type Response struct {
	Request    *RequestOptions
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte

	Resources ResourceFetcher

	scope hostscope.Predicate
}

// MediaType returns the media type of the Content-Type header without parameters.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// Resolve makes ref absolute against the URL the response was served from.
func (r *Response) Resolve(ref string) (string, error) {
	base, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// InScope reports whether ref may be rewritten by the filter currently running.
func (r *Response) InScope(ref string) bool {
	if r.scope == nil {
		return true
	}
	return r.scope(ref)
}

// Fetch resolves ref and fetches it through r.Resources.
func (r *Response) Fetch(ctx context.Context, ref string) (*Response, error) {
	if r.Resources == nil {
		return nil, fmt.Errorf("no resource fetcher bound to %s", r.URL)
	}
	abs, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.Resources.FetchResource(ctx, abs)
}
