// Package hostscope restricts bundling to the host of the requested document.
//
// A resource is in scope when it is a relative reference or when its host
// (hostname and port) is byte-for-byte equal to the document's host. An empty
// document URL puts nothing in scope, and malformed URLs are never in scope.
package hostscope

import "net/url"

// Predicate reports whether a resource URL may be rewritten or fetched.
type Predicate func(resourceURL string) bool

// IsSameHost reports whether resourceURL shares the host of originalURL.
func IsSameHost(originalURL, resourceURL string) bool {
	return SameHostPredicate(originalURL)(resourceURL)
}

// SameHostPredicate binds originalURL once so the document URL is parsed a
// single time per bundle rather than once per embedded resource.
func SameHostPredicate(originalURL string) Predicate {
	if originalURL == "" {
		return never
	}
	original, err := url.Parse(originalURL)
	if err != nil {
		return never
	}
	originalHost := original.Host

	return func(resourceURL string) bool {
		resource, err := url.Parse(resourceURL)
		if err != nil {
			return false
		}
		// relative references such as href="/path/to/resource" carry no host
		return resource.Host == "" || resource.Host == originalHost
	}
}

// RemoveLinksToOtherHosts returns resourceURL when it is in scope of
// originalURL and an empty string otherwise.
func RemoveLinksToOtherHosts(originalURL, resourceURL string) string {
	if IsSameHost(originalURL, resourceURL) {
		return resourceURL
	}
	return ""
}

func never(string) bool { return false }
