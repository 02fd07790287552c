// Package cardcache is an intercepting cache for a small static site.
// It serves the site's assets from versioned stores, refreshes the contact data
// in the background and generates vCards from it on request.
package cardcache

import (
	"crypto/tls"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/always-cache/card-cache/cache"
	cachekey "github.com/always-cache/card-cache/pkg/cache-key"
	serializer "github.com/always-cache/card-cache/pkg/response-serializer"
	tee "github.com/always-cache/card-cache/pkg/response-writer-tee"
	"github.com/always-cache/card-cache/rfc9211"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type CardCache struct {
	stores       *cache.Manager
	keyer        cachekey.CacheKeyer
	network      *network
	classifier   Classifier
	log          zerolog.Logger
	metrics      *metrics
	reverseproxy httputil.ReverseProxy
	version      string
	assets       []string
	contactsURL  url.URL

	// generation serving requests, nil until the first activation
	active atomic.Pointer[generation]
	// generation installed and waiting for activation
	installed      *generation
	lifecycleMutex sync.Mutex
	// background revalidations
	pending sync.WaitGroup
}

// CreateCache initializes the card-cache instance.
// Requests are passed through to the origin until Start (or Update) succeeds.
func CreateCache(config Config) (*CardCache, error) {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Logger()

	m, err := newMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}

	base := normalizeBase(config.BasePath)
	contactsPath := config.ContactsPath
	if contactsPath == "" {
		contactsPath = DefaultContactsPath
	}
	assets := config.Assets
	if assets == nil {
		assets = DefaultAssets
	}
	version := config.Version
	if version == "" {
		version = DefaultVersion
	}

	keyer := cachekey.NewCacheKeyer(config.OriginURL)
	a := &CardCache{
		stores:  cache.NewManager(config.Cache, keyer, logger),
		keyer:   keyer,
		log:     logger,
		metrics: m,
		version: version,
		classifier: Classifier{
			Origin:       config.OriginURL,
			BasePath:     base,
			ContactsPath: strings.TrimPrefix(contactsPath, "/"),
		},
	}
	for _, asset := range assets {
		a.assets = append(a.assets, base+strings.TrimPrefix(asset, "/"))
	}
	a.contactsURL = *keyer.Resolve(&http.Request{URL: &url.URL{Path: base + a.classifier.ContactsPath}})

	host := config.OriginURL.Host
	hostHeader := host
	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if config.OriginHost != "" {
		hostHeader = config.OriginHost
		if config.Transport == nil {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{
					ServerName: config.OriginHost,
				},
			}
		}
	}
	a.network = newNetwork(keyer, config.OriginHost, transport, config.Rules)
	a.reverseproxy = httputil.ReverseProxy{
		Director:  createDirector(config.OriginURL.Scheme, host, hostHeader),
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			a.requestLogger(r).Error().Err(err).Str("url", r.URL.String()).Msg("Could not pass request through")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	return a, nil
}

// ServeHTTP implements the http.Handler interface.
func (a *CardCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := tee.NewResponseRecorder(w)
	defer a.recover(rw, r)
	a.handle(rw, r)
}

// recover recovers from panics and sends the request to the escape hatch if nothing was written yet.
func (a *CardCache) recover(w *tee.ResponseRecorder, r *http.Request) {
	if err := recover(); err != nil {
		if err == http.ErrAbortHandler {
			panic(err)
		}
		a.requestLogger(r).WithLevel(zerolog.PanicLevel).Interface("error", err).Msg("Panic in cache handler")
		if !w.WroteHeaders() {
			a.escapeHatch(w, r)
		}
	}
}

// escapeHatch is a fallback handler that just passes the request to the origin.
func (a *CardCache) escapeHatch(w http.ResponseWriter, r *http.Request) {
	a.reverseproxy.ServeHTTP(w, r)
}

// handle is the main entry point for intercepted requests.
func (a *CardCache) handle(w *tee.ResponseRecorder, r *http.Request) {
	log := a.requestLogger(r)
	log.Trace().Interface("headers", r.Header).Msgf("Incoming request: %s %s", r.Method, r.URL.String())

	gen := a.active.Load()
	if gen == nil {
		log.Trace().Msg("No active version, not intercepting")
		a.passThrough(w, r, rfc9211.FwdReasonBypass)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		a.passThrough(w, r, rfc9211.FwdReasonMethod)
		return
	}

	decision := a.classifier.Classify(a.keyer.Resolve(r))
	log.Trace().Str("route", decision.String()).Str("version", gen.version).Msg("Classified request")

	var (
		res         *serializer.Snapshot
		cacheStatus rfc9211.CacheStatus
	)
	switch decision.Kind {
	case RouteDerivedResource:
		res, cacheStatus = a.synthesize(r, decision.Identifier)
	case RouteStaticAsset:
		if decision.Policy == PolicyStaleWhileRevalidate {
			res, cacheStatus = a.staleWhileRevalidate(r, gen)
		} else {
			res, cacheStatus = a.cacheFirst(r)
		}
	default:
		a.passThrough(w, r, rfc9211.FwdReasonBypass)
		return
	}
	a.send(w, r, decision.String(), res, cacheStatus)
}

func (a *CardCache) send(w *tee.ResponseRecorder, r *http.Request, route string, res *serializer.Snapshot, cacheStatus rfc9211.CacheStatus) {
	w.Header().Set("Cache-Status", cacheStatus.String())
	if err := res.Send(w); err != nil {
		a.requestLogger(r).Error().Err(err).Msg("Could not write response body to client")
	}
	a.logRequest(w, r, route, cacheStatus)
	a.metrics.request(route, cacheStatus)
}

// passThrough lets the request go to the network untouched.
func (a *CardCache) passThrough(w *tee.ResponseRecorder, r *http.Request, reason rfc9211.FwdReason) {
	a.reverseproxy.ServeHTTP(w, r)
	cs := rfc9211.CacheStatus{}
	cs.Forward(reason)
	a.logRequest(w, r, "passthrough", cs)
	a.metrics.request("passthrough", rfc9211.CacheStatus{})
}

// Wait blocks until all background revalidations are done.
func (a *CardCache) Wait() {
	a.pending.Wait()
}

// Version returns the version serving requests, empty before the first activation.
func (a *CardCache) Version() string {
	if gen := a.active.Load(); gen != nil {
		return gen.version
	}
	return ""
}

// StoreNames lists all existing stores.
func (a *CardCache) StoreNames() ([]string, error) {
	return a.stores.Names()
}

// createDirector sends relative requests to the origin.
// Absolute (proxy-form) requests for other origins keep their target.
func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		if req.URL.IsAbs() && !strings.EqualFold(req.URL.Host, host) {
			req.Host = req.URL.Host
			return
		}
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}

// requestLogger returns the logger from the request context,
// or the cache logger if there is none.
func (a *CardCache) requestLogger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		return &a.log
	}
	return logger
}

func (a *CardCache) logRequest(w *tee.ResponseRecorder, r *http.Request, route string, cs rfc9211.CacheStatus) {
	isHit := 0
	if cs.IsHit() {
		isHit = 1
	}
	a.requestLogger(r).Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", getRequestSourceIp(r)).
		Str("route", route).
		Int("status", w.StatusCode()).
		Int("size", w.Size()).
		Dur("duration", time.Since(w.CreatedAt)).
		Str("fwd", string(cs.FwdReason)).
		Bool("stored", cs.Stored).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func getRequestSourceIp(r *http.Request) string {
	// RemoteAddr is in the format:
	// 1.2.3.4:10000 for ipv4
	// [1:2:3]:10000 for ipv6
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	// if not found, return
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}
