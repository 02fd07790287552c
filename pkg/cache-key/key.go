package cachekey

import (
	"net/http"
	"net/url"
)

const methodSeparator = " "

// CacheKeyer derives request identities.
// Relative request URLs are resolved against the origin so that every stored key is absolute.
type CacheKeyer struct {
	// Origin that relative requests belong to.
	Origin url.URL
}

func NewCacheKeyer(origin url.URL) CacheKeyer {
	return CacheKeyer{Origin: origin}
}

// Resolve returns the absolute URL of the request, without fragment.
func (c CacheKeyer) Resolve(r *http.Request) *url.URL {
	u := *r.URL
	if !u.IsAbs() {
		u.Scheme = c.Origin.Scheme
		u.Host = c.Origin.Host
	}
	u.Fragment = ""
	u.RawFragment = ""
	return &u
}

// GetKey returns the identity of the request: method and absolute URL.
// The query string is part of the key.
func (c CacheKeyer) GetKey(r *http.Request) string {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + methodSeparator + c.Resolve(r).String()
}

