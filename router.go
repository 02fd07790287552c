package cardcache

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// AdminPrefix is the path prefix of the routes answered by the cache itself.
const AdminPrefix = "/.card-cache"

type storeStatus struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

type status struct {
	Version string        `json:"version"`
	Stores  []storeStatus `json:"stores"`
}

// NewHandler wraps the cache with request logging and the admin routes.
// Metrics are served from gatherer if it is not nil.
func NewHandler(a *CardCache, gatherer prometheus.Gatherer, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Trace().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Access")
	}))

	r.Route(AdminPrefix, func(r chi.Router) {
		r.Get("/status", a.serveStatus)
		if gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		}
	})
	r.Handle("/*", a)
	return r
}

func (a *CardCache) serveStatus(w http.ResponseWriter, r *http.Request) {
	names, err := a.stores.Names()
	if err != nil {
		a.requestLogger(r).Error().Err(err).Msg("Could not list stores")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := status{Version: a.Version(), Stores: make([]storeStatus, 0, len(names))}
	for _, name := range names {
		keys, err := a.stores.Keys(name)
		if err != nil {
			a.requestLogger(r).Error().Err(err).Str("store", name).Msg("Could not list store keys")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		st.Stores = append(st.Stores, storeStatus{Name: name, Entries: len(keys)})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		a.requestLogger(r).Error().Err(err).Msg("Could not write status")
	}
}
