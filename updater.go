package cardcache

import (
	"context"
	"errors"
	"net/http"

	"github.com/always-cache/card-cache/cache"
	serializer "github.com/always-cache/card-cache/pkg/response-serializer"
	"github.com/always-cache/card-cache/rfc9211"
)

// result of a store lookup or a network fetch
type result struct {
	snap   *serializer.Snapshot
	stored bool
	err    error
}

func async(f func() result) <-chan result {
	ch := make(chan result, 1)
	go func() {
		ch <- f()
	}()
	return ch
}

// firstAvailable returns the stored result if there is one, the network result otherwise.
// The network operation keeps running when the stored result is used.
func firstAvailable(cached, network <-chan result) (res result, fromCache bool) {
	if c := <-cached; c.snap != nil {
		return c, true
	}
	return <-network, false
}

// revalidate fetches a fresh full response and puts it in the runtime store of gen.
// Client Range and conditional headers are not forwarded, and HEAD requests are refreshed with GET,
// so that only complete 200 responses are stored.
// The fetch is not bound to the request: it completes even if the client goes away.
// A response arriving after gen was replaced is discarded.
func (a *CardCache) revalidate(ctx context.Context, r *http.Request, gen *generation) <-chan result {
	ctx = context.WithoutCancel(ctx)
	log := a.requestLogger(r)
	req := r.Clone(ctx)
	req.Method = http.MethodGet
	a.pending.Add(1)
	return async(func() result {
		defer a.pending.Done()
		snap, err := a.network.fetch(ctx, req, true)
		if err != nil {
			a.metrics.revalidations.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("Revalidation failed")
			return result{err: err}
		}
		if snap.StatusCode != http.StatusOK {
			a.metrics.revalidations.WithLabelValues("not-stored").Inc()
			log.Debug().Int("status", snap.StatusCode).Str("url", req.URL.String()).Msg("Revalidated response not stored")
			return result{snap: snap}
		}
		if a.active.Load() != gen {
			a.metrics.revalidations.WithLabelValues("discarded").Inc()
			log.Debug().Str("store", gen.runtime.Name).Msg("Version replaced during revalidation, response not stored")
			return result{snap: snap}
		}
		if err := a.stores.Put(gen.runtime, req, snap); err != nil {
			if errors.Is(err, cache.ErrStoreNotFound) {
				a.metrics.revalidations.WithLabelValues("discarded").Inc()
				log.Debug().Str("store", gen.runtime.Name).Msg("Store purged during revalidation, response not stored")
				return result{snap: snap}
			}
			a.metrics.revalidations.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("store", gen.runtime.Name).Msg("Could not store revalidated response")
			return result{snap: snap}
		}
		a.metrics.revalidations.WithLabelValues("stored").Inc()
		log.Trace().Str("store", gen.runtime.Name).Str("url", req.URL.String()).Msg("Stored revalidated response")
		return result{snap: snap, stored: true}
	})
}

// staleWhileRevalidate serves the stored response at once and refreshes it in the background.
// Without a stored response the client waits for the network.
func (a *CardCache) staleWhileRevalidate(r *http.Request, gen *generation) (*serializer.Snapshot, rfc9211.CacheStatus) {
	var cacheStatus rfc9211.CacheStatus
	network := a.revalidate(r.Context(), r, gen)
	cached := async(func() result {
		snap, ok := a.lookup(r)
		if !ok {
			return result{}
		}
		return result{snap: snap}
	})

	res, fromCache := firstAvailable(cached, network)
	if fromCache {
		cacheStatus.Hit()
		cacheStatus.Detail = "stale-while-revalidate"
		return res.snap, cacheStatus
	}
	if res.err != nil {
		cacheStatus.Forward(rfc9211.FwdReasonMiss)
		cacheStatus.Detail = "network-error"
		return networkError(), cacheStatus
	}
	cacheStatus.Forward(rfc9211.FwdReasonUriMiss)
	cacheStatus.Stored = res.stored
	return res.snap, cacheStatus
}
