package cardcache

import (
	"net/url"
	"strings"
)

type RouteKind int

const (
	// RoutePassThrough requests are not intercepted.
	RoutePassThrough RouteKind = iota
	// RouteStaticAsset requests are served from the stores.
	RouteStaticAsset
	// RouteDerivedResource requests are answered with a generated card.
	RouteDerivedResource
)

// Policy decides how a static asset is served.
type Policy int

const (
	// PolicyCacheFirst serves the stored response, the network only on a miss.
	PolicyCacheFirst Policy = iota
	// PolicyStaleWhileRevalidate serves the stored response and refreshes it from the network.
	PolicyStaleWhileRevalidate
)

// RouteDecision is the outcome of classifying one request.
type RouteDecision struct {
	Kind RouteKind
	// Policy of a static asset.
	Policy Policy
	// Contact identifier of a derived resource.
	Identifier string
}

// String returns a short label, also used for metrics.
func (d RouteDecision) String() string {
	switch d.Kind {
	case RouteStaticAsset:
		if d.Policy == PolicyStaleWhileRevalidate {
			return "stale-while-revalidate"
		}
		return "cache-first"
	case RouteDerivedResource:
		return "vcf"
	default:
		return "passthrough"
	}
}

// Classifier maps request URLs to route decisions.
type Classifier struct {
	// Origin the cache is in control of.
	Origin url.URL
	// Base path, starting and ending with a slash.
	BasePath string
	// Contact data resource, relative to BasePath.
	ContactsPath string
}

// Classify decides how the request for the absolute URL u is handled.
// The order of the checks matters: generated cards live under the base path
// and would otherwise be treated as static assets.
func (c Classifier) Classify(u *url.URL) RouteDecision {
	if !c.sameOrigin(u) {
		return RouteDecision{Kind: RoutePassThrough}
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if id, ok := c.cardIdentifier(path); ok {
		return RouteDecision{Kind: RouteDerivedResource, Identifier: id}
	}
	if path == c.BasePath+c.ContactsPath {
		return RouteDecision{Kind: RouteStaticAsset, Policy: PolicyStaleWhileRevalidate}
	}
	if strings.HasPrefix(path, c.BasePath) {
		return RouteDecision{Kind: RouteStaticAsset, Policy: PolicyCacheFirst}
	}
	return RouteDecision{Kind: RoutePassThrough}
}

// cardIdentifier extracts the identifier from <base>vcf/<identifier>.vcf.
// Any non-empty single path segment is accepted.
func (c Classifier) cardIdentifier(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, c.BasePath+"vcf/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ".vcf")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (c Classifier) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.Origin.Scheme) && strings.EqualFold(u.Host, c.Origin.Host)
}
