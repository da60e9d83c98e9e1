// Package pipeline chains the handlers that shape a bundle's outbound requests
// and the filters that rewrite what comes back.
//
// # Phases
//
// A bundle goes through four phases:
//   - OriginalRequest: options for fetching the requested document
//   - OriginalReceived: the fetched document, before it is returned
//   - ResourceRequest: options for fetching each embedded resource
//   - ResourceReceived: each fetched resource, before it is embedded
//
// Request phases run Handlers over *RequestOptions, received phases run
// Filters over *Response. Within a phase the registered steps run strictly in
// registration order, each seeing the mutations of its predecessors. The first
// step returning an error aborts the rest of the phase.
package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andesco/bundler/pkg/hostscope"
)

type Phase int

const (
	OriginalRequest Phase = iota
	OriginalReceived
	ResourceRequest
	ResourceReceived
)

func (p Phase) String() string {
	switch p {
	case OriginalRequest:
		return "originalRequest"
	case OriginalReceived:
		return "originalReceived"
	case ResourceRequest:
		return "resourceRequest"
	case ResourceReceived:
		return "resourceReceived"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Handler shapes the options of an outbound request. Returning nil options
// with a nil error keeps the options passed in.
type Handler func(ctx context.Context, opts *RequestOptions) (*RequestOptions, error)

// Filter rewrites a fetched document or resource. Returning a nil response
// with a nil error keeps the response passed in.
type Filter func(ctx context.Context, resp *Response) (*Response, error)

// PredicatedHandler runs h only for options whose URL satisfies pred.
func PredicatedHandler(pred hostscope.Predicate, h Handler) Handler {
	return func(ctx context.Context, opts *RequestOptions) (*RequestOptions, error) {
		if !pred(opts.URL) {
			return opts, nil
		}
		return h(ctx, opts)
	}
}

// Predicated restricts f to the references satisfying pred: while f runs,
// Response.InScope only admits references that pred accepts as well.
func Predicated(pred hostscope.Predicate, f Filter) Filter {
	return func(ctx context.Context, resp *Response) (*Response, error) {
		outer := resp.scope
		scoped := *resp
		scoped.scope = func(ref string) bool {
			return (outer == nil || outer(ref)) && pred(ref)
		}

		out, err := f(ctx, &scoped)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = &scoped
		}
		out.scope = outer
		return out, nil
	}
}

// Registration holds the ordered steps of each phase. Steps are appended at
// construction and never reordered.
type Registration struct {
	originalRequest  []Handler
	resourceRequest  []Handler
	originalReceived []Filter
	resourceReceived []Filter
}

func (r *Registration) OnOriginalRequest(h ...Handler) {
	r.originalRequest = append(r.originalRequest, h...)
}

func (r *Registration) OnResourceRequest(h ...Handler) {
	r.resourceRequest = append(r.resourceRequest, h...)
}

func (r *Registration) OnOriginalReceived(f ...Filter) {
	r.originalReceived = append(r.originalReceived, f...)
}

func (r *Registration) OnResourceReceived(f ...Filter) {
	r.resourceReceived = append(r.resourceReceived, f...)
}

// Len returns the number of steps registered for phase.
func (r *Registration) Len(phase Phase) int {
	switch phase {
	case OriginalRequest:
		return len(r.originalRequest)
	case ResourceRequest:
		return len(r.resourceRequest)
	case OriginalReceived:
		return len(r.originalReceived)
	case ResourceReceived:
		return len(r.resourceReceived)
	}
	return 0
}

// RunRequest passes opts through the handlers of a request phase.
func (r *Registration) RunRequest(ctx context.Context, phase Phase, opts *RequestOptions) (*RequestOptions, error) {
	var handlers []Handler
	switch phase {
	case OriginalRequest:
		handlers = r.originalRequest
	case ResourceRequest:
		handlers = r.resourceRequest
	default:
		return nil, fmt.Errorf("%s is not a request phase", phase)
	}

	current := opts
	for i, h := range handlers {
		if current.Header == nil {
			current.Header = make(http.Header)
		}
		next, err := h(ctx, current)
		if err != nil {
			return nil, &StepError{Phase: phase, Index: i, Err: err}
		}
		if next != nil {
			current = next
		}
	}
	if current.Header == nil {
		current.Header = make(http.Header)
	}
	return current, nil
}

// RunReceived passes resp through the filters of a received phase.
func (r *Registration) RunReceived(ctx context.Context, phase Phase, resp *Response) (*Response, error) {
	var filters []Filter
	switch phase {
	case OriginalReceived:
		filters = r.originalReceived
	case ResourceReceived:
		filters = r.resourceReceived
	default:
		return nil, fmt.Errorf("%s is not a received phase", phase)
	}

	current := resp
	for i, f := range filters {
		next, err := f(ctx, current)
		if err != nil {
			return nil, &StepError{Phase: phase, Index: i, Err: err}
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// StepError is returned when a step aborts its phase.
type StepError struct {
	Phase Phase
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %d: %v", e.Phase, e.Index, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
