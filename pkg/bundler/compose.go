package bundler

import (
	"context"
	"net/http"

	"github.com/andesco/bundler/pkg/config"
	"github.com/andesco/bundler/pkg/headers"
	"github.com/andesco/bundler/pkg/hostscope"
	"github.com/andesco/bundler/pkg/pipeline"
	"github.com/andesco/bundler/pkg/remap"
)

// ProxyTo routes fetches through the HTTP proxy at address.
func ProxyTo(address string) pipeline.Handler {
	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		opts.Proxy = address
		return opts, nil
	}
}

// Compose registers the bundling pipeline of cfg on s. inbound holds the
// headers of the request that asked for the bundle.
//
// Content filters only touch resources on the document's host. Request
// handlers run in this order, later ones overriding earlier header values:
// proxy routing, destination Host, remapping, configured headers, headers
// cloned from the inbound request, redirect policy, options dump.
func Compose(s *Session, cfg *config.Config, inbound http.Header) {
	isSameHost := s.Scope

	s.OnOriginalReceived(
		pipeline.Predicated(isSameHost, ReplaceImages),
		pipeline.Predicated(isSameHost, ReplaceJSFiles),
		pipeline.Predicated(isSameHost, ReplaceCSSFiles),
		pipeline.Predicated(isSameHost, ReplaceURLCalls),
	)
	if cfg.StripForeignLinks {
		target := s.URL
		s.OnOriginalReceived(ReplaceLinks(func(ref string) string {
			return hostscope.RemoveLinksToOtherHosts(target, ref)
		}))
	}
	s.OnResourceReceived(pipeline.Predicated(isSameHost, BundleCSSRecursively))

	if cfg.UseProxy {
		s.OnOriginalRequest(ProxyTo(cfg.ProxyAddress))
		s.OnResourceRequest(ProxyTo(cfg.ProxyAddress))
	}

	s.OnOriginalRequest(headers.SpoofHostAsDestination(s.URL))
	s.OnResourceRequest(headers.SpoofHostAsDestination(s.URL))

	s.OnOriginalRequest(remap.Apply(cfg.Remaps, s.log))
	s.OnResourceRequest(remap.Apply(cfg.Remaps, s.log))

	s.OnOriginalRequest(headers.SpoofHeaders(cfg.SpoofHeaders))
	s.OnResourceRequest(headers.SpoofHeaders(cfg.SpoofHeaders))

	s.OnOriginalRequest(headers.CloneHeaders(headers.ExtractHeaders(inbound, cfg.CloneHeaders)))

	policy := cfg.RedirectPolicy()
	s.OnOriginalRequest(policy.Handler(pipeline.OriginalRequest))
	s.OnResourceRequest(policy.Handler(pipeline.ResourceRequest))

	s.OnOriginalRequest(headers.DumpOptions(s.log))
	s.OnResourceRequest(headers.DumpOptions(s.log))
}
