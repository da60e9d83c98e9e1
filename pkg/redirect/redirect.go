// Package redirect bounds and gates how outbound fetches follow redirects.
package redirect

import (
	"context"
	"fmt"
	"net/http"

	bundlererrors "github.com/andesco/bundler/pkg/errors"
	"github.com/andesco/bundler/pkg/pipeline"
)

// Policy is read-only once validated.
type Policy struct {
	// FollowFirst lets the document fetch follow redirects.
	FollowFirst bool
	// FollowAll also lets every embedded-resource fetch follow redirects.
	FollowAll bool
	// Limit bounds the redirect hops of a single fetch.
	Limit int
}

func (p Policy) Validate() error {
	if p.Limit < 1 {
		return fmt.Errorf("redirect limit must be a positive integer, got %d", p.Limit)
	}
	return nil
}

// Follows reports whether fetches in phase may follow redirects.
func (p Policy) Follows(phase pipeline.Phase) bool {
	switch phase {
	case pipeline.OriginalRequest:
		return p.FollowFirst || p.FollowAll
	case pipeline.ResourceRequest:
		return p.FollowAll
	}
	return false
}

// Handler applies the policy to the options of a request phase.
func (p Policy) Handler(phase pipeline.Phase) pipeline.Handler {
	follow := p.Follows(phase)
	return func(_ context.Context, opts *pipeline.RequestOptions) (*pipeline.RequestOptions, error) {
		opts.FollowRedirects = follow
		opts.MaxRedirects = p.Limit
		return opts, nil
	}
}

// CheckRedirect returns an http.Client CheckRedirect function enforcing the
// redirect settings of opts. onHop, when set, is called for every hop that is
// followed.
func CheckRedirect(opts *pipeline.RequestOptions, onHop func(hop int, to string)) func(*http.Request, []*http.Request) error {
	follow := opts.FollowRedirects
	limit := opts.MaxRedirects

	return func(req *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		hop := len(via)
		if hop > limit {
			return bundlererrors.RedirectLimitExceeded.Message(
				fmt.Sprintf("%d redirects exceed the limit of %d for %s", hop, limit, via[0].URL))
		}
		if onHop != nil {
			onHop(hop, req.URL.String())
		}
		return nil
	}
}
