// Package headers decides which headers outbound bundle requests carry.
//
// Handlers in this package are registered so that later ones win:
//
//  1. SpoofHostAsDestination sets Host to the requested site
//  2. remap.Apply overrides Host for remapped sites
//  3. SpoofHeaders writes the configured fixed values
//  4. CloneHeaders copies values from the inbound request
package headers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/andesco/bundler/pkg/pipeline"
)

// Extracted maps each requested header name to its inbound value, or to nil
// when the inbound request did not carry it.
type Extracted map[string]*string

// ExtractHeaders copies the named headers from source. Every name appears in
// the result; absent ones map to nil.
func ExtractHeaders(source http.Header, names []string) Extracted {
	out := make(Extracted, len(names))
	for _, name := range names {
		values := source.Values(name)
		if len(values) == 0 {
			out[name] = nil
			continue
		}
		v := values[0]
		out[name] = &v
	}
	return out
}

// SpoofHostAsDestination sets the Host header to the hostname of target,
// replacing any value set before it.
func SpoofHostAsDestination(target string) pipeline.Handler {
	var hostname string
	if u, err := url.Parse(target); err == nil {
		hostname = u.Hostname()
	}

	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		if opts.Header == nil {
			opts.Header = make(http.Header)
		}
		opts.Header.Set("Host", hostname)
		return opts, nil
	}
}

// SpoofHeaders writes every entry of set onto the outbound request.
func SpoofHeaders(set map[string]string) pipeline.Handler {
	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		for name, value := range set {
			opts.Header.Set(name, value)
		}
		return opts, nil
	}
}

// CloneHeaders writes the extracted inbound values onto the outbound request.
// Names the inbound request did not carry are left untouched.
func CloneHeaders(extracted Extracted) pipeline.Handler {
	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		for name, value := range extracted {
			if value == nil {
				continue
			}
			opts.Header.Set(name, *value)
		}
		return opts, nil
	}
}
