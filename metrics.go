package cardcache

import (
	"errors"

	"github.com/always-cache/card-cache/rfc9211"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests      *prometheus.CounterVec
	revalidations *prometheus.CounterVec
	installs      *prometheus.CounterVec
	purged        prometheus.Counter
	activeVersion *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "card_cache",
			Name:      "requests_total",
			Help:      "Requests handled, by route and cache status.",
		}, []string{"route", "status"}),
		revalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "card_cache",
			Name:      "revalidations_total",
			Help:      "Background network refreshes, by result.",
		}, []string{"result"}),
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "card_cache",
			Name:      "installs_total",
			Help:      "Install attempts, by result.",
		}, []string{"result"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "card_cache",
			Name:      "purged_stores_total",
			Help:      "Stale stores deleted at activation.",
		}),
		activeVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "card_cache",
			Name:      "active_version",
			Help:      "Set to 1 for the version serving requests.",
		}, []string{"version"}),
	}
	if reg == nil {
		return m, nil
	}
	var errs []error
	for _, c := range []prometheus.Collector{m.requests, m.revalidations, m.installs, m.purged, m.activeVersion} {
		errs = append(errs, reg.Register(c))
	}
	return m, errors.Join(errs...)
}

func (m *metrics) request(route string, cs rfc9211.CacheStatus) {
	status := string(cs.Status)
	if status == "" {
		status = "none"
	}
	m.requests.WithLabelValues(route, status).Inc()
}

func (m *metrics) claimed(previous, version string) {
	if previous != "" {
		m.activeVersion.DeleteLabelValues(previous)
	}
	m.activeVersion.WithLabelValues(version).Set(1)
}
