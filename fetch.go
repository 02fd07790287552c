package cardcache

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	cachekey "github.com/always-cache/card-cache/pkg/cache-key"
	serializer "github.com/always-cache/card-cache/pkg/response-serializer"
	responsetransformer "github.com/always-cache/card-cache/pkg/response-transformer"
)

// NetworkError reports a failed origin fetch.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// network fetches resources from the origin, or from other origins for absolute URLs.
type network struct {
	client     http.Client
	keyer      cachekey.CacheKeyer
	hostHeader string
	rules      responsetransformer.Rules
}

func newNetwork(keyer cachekey.CacheKeyer, hostHeader string, transport http.RoundTripper, rules responsetransformer.Rules) *network {
	return &network{
		client: http.Client{
			Transport: transport,
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		keyer:      keyer,
		hostHeader: hostHeader,
		rules:      rules,
	}
}

// fetch gets the response to r from the network.
// With bypass set, the request asks every cache on the way for a fresh response
// and conditional headers are dropped, so that the result is always a full response.
func (n *network) fetch(ctx context.Context, r *http.Request, bypass bool) (*serializer.Snapshot, error) {
	target := n.keyer.Resolve(r)
	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), nil)
	if err != nil {
		return nil, &NetworkError{URL: target.String(), Err: err}
	}
	copyHeader(req.Header, r.Header)
	if n.hostHeader != "" && strings.EqualFold(target.Host, n.keyer.Origin.Host) {
		req.Host = n.hostHeader
	}
	if bypass {
		req.Header.Set("Cache-Control", "no-store")
		req.Header.Set("Pragma", "no-cache")
		for _, name := range []string{"If-None-Match", "If-Modified-Since", "If-Match", "If-Unmodified-Since", "If-Range", "Range"} {
			req.Header.Del(name)
		}
	}
	res, err := n.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: target.String(), Err: err}
	}
	n.rules.Apply(res)
	snap, err := serializer.FromResponse(res)
	if err != nil {
		return nil, &NetworkError{URL: target.String(), Err: err}
	}
	return snap, nil
}

// fetchBypass is the cache.FetchFunc used to populate stores.
func (n *network) fetchBypass(ctx context.Context, r *http.Request) (*serializer.Snapshot, error) {
	return n.fetch(ctx, r, true)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// the transport negotiates compression itself, so that stored bodies are always decoded
		// forwarding headers set by an upstream proxy are not passed on
		switch k {
		case "Accept-Encoding", "X-Forwarded-For", "X-Forwarded-Proto", "X-Forwarded-Host":
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
