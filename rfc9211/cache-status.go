// Package rfc9211 builds Cache-Status header values (RFC 9211).
package rfc9211

import "fmt"

// CacheName identifies this cache in Cache-Status values.
const CacheName = "card-cache"

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"

	// The request method's semantics require the request to be
	// forwarded.
	FwdReasonMethod FwdReason = "method"

	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"
)

type CacheStatus struct {
	Status    Status
	FwdReason FwdReason
	// The response was stored by the cache.
	Stored bool
	Detail string
}

func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

// IsHit reports whether the response came from the cache.
func (cs CacheStatus) IsHit() bool {
	return cs.Status == StatusHit
}

func (cs CacheStatus) String() string {
	status := fmt.Sprintf("%s; %s", CacheName, cs.Status)
	if cs.Status == StatusFwd && cs.FwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.FwdReason)
	}
	if cs.Stored {
		status = status + "; stored"
	}
	if cs.Detail != "" {
		status = status + "; detail=" + cs.Detail
	}
	return status
}
