package cardcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/always-cache/card-cache/cache"
)

// ErrNotInstalled is returned by Activate when no version is waiting for activation.
var ErrNotInstalled = errors.New("no installed version to activate")

// generation is one version of the stores.
type generation struct {
	version string
	static  cache.Handle
	runtime cache.Handle
}

func (g *generation) names() []string {
	return []string{g.static.Name, g.runtime.Name}
}

// Install fetches all assets into the static store of the version.
// On failure the previously installed or active version is left as is.
func (a *CardCache) Install(ctx context.Context, version string) error {
	a.lifecycleMutex.Lock()
	defer a.lifecycleMutex.Unlock()
	return a.install(ctx, version)
}

// Activate deletes every store not belonging to the installed version
// and starts serving requests from it.
func (a *CardCache) Activate(ctx context.Context) error {
	a.lifecycleMutex.Lock()
	defer a.lifecycleMutex.Unlock()
	return a.activate(ctx)
}

// Update installs and activates the version.
func (a *CardCache) Update(ctx context.Context, version string) error {
	a.lifecycleMutex.Lock()
	defer a.lifecycleMutex.Unlock()
	if err := a.install(ctx, version); err != nil {
		return err
	}
	return a.activate(ctx)
}

// Start installs and activates the configured version.
// If the origin cannot serve the assets but a complete static store
// of the version exists from a previous run, that store is used.
func (a *CardCache) Start(ctx context.Context) error {
	err := a.Update(ctx, a.version)
	if err == nil {
		return nil
	}
	if rerr := a.resume(a.version); rerr != nil {
		a.log.Debug().Err(rerr).Str("version", a.version).Msg("Could not resume from stored version")
		return err
	}
	a.log.Warn().Err(err).Str("version", a.version).Msg("Install failed, serving previously stored version")
	return nil
}

func (a *CardCache) install(ctx context.Context, version string) error {
	log := a.log.With().Str("version", version).Logger()
	log.Info().Int("assets", len(a.assets)).Msg("Installing")

	gen, err := a.open(version)
	if err != nil {
		a.metrics.installs.WithLabelValues("failed").Inc()
		return err
	}
	requests, err := a.assetRequests(ctx)
	if err != nil {
		a.metrics.installs.WithLabelValues("failed").Inc()
		return err
	}
	if err := a.stores.Populate(ctx, gen.static, requests, a.network.fetchBypass); err != nil {
		a.metrics.installs.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Install failed")
		return fmt.Errorf("install %s: %w", version, err)
	}
	a.installed = gen
	a.metrics.installs.WithLabelValues("ok").Inc()
	log.Info().Msg("Install completed")
	return nil
}

func (a *CardCache) activate(_ context.Context) error {
	gen := a.installed
	if gen == nil {
		return ErrNotInstalled
	}
	log := a.log.With().Str("version", gen.version).Logger()
	deleted, err := a.stores.PurgeStale(gen.names()...)
	a.metrics.purged.Add(float64(len(deleted)))
	if err != nil {
		// leftovers are retried at the next activation
		log.Error().Err(err).Msg("Could not delete all stale stores")
	}
	a.claim(gen)
	a.installed = nil
	return nil
}

// claim makes gen serve all subsequent requests.
func (a *CardCache) claim(gen *generation) {
	previous := ""
	if prev := a.active.Swap(gen); prev != nil {
		previous = prev.version
	}
	a.version = gen.version
	a.metrics.claimed(previous, gen.version)
	a.log.Info().Str("version", gen.version).Str("previous", previous).Msg("Activated")
}

// resume activates the stored version without fetching,
// if its static store holds every asset.
func (a *CardCache) resume(version string) error {
	a.lifecycleMutex.Lock()
	defer a.lifecycleMutex.Unlock()

	static := cache.Handle{Name: cache.StoreName(cache.PurposeStatic, version), Purpose: cache.PurposeStatic, Version: version}
	requests, err := a.assetRequests(context.Background())
	if err != nil {
		return err
	}
	for _, r := range requests {
		ok, err := a.stores.Has(static, r)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store %s: missing %s", static.Name, r.URL)
		}
	}
	gen, err := a.open(version)
	if err != nil {
		return err
	}
	a.claim(gen)
	return nil
}

func (a *CardCache) open(version string) (*generation, error) {
	static, err := a.stores.OpenCurrent(cache.PurposeStatic, version)
	if err != nil {
		return nil, err
	}
	runtime, err := a.stores.OpenCurrent(cache.PurposeRuntime, version)
	if err != nil {
		return nil, err
	}
	return &generation{version: version, static: static, runtime: runtime}, nil
}

// assetRequests creates GET requests for all assets, resolved against the origin.
func (a *CardCache) assetRequests(ctx context.Context) ([]*http.Request, error) {
	requests := make([]*http.Request, 0, len(a.assets))
	for _, asset := range a.assets {
		target := a.keyer.Resolve(&http.Request{URL: &url.URL{Path: asset}})
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, nil
}
