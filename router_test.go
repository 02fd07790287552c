package cardcache

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestHandlerStatus(t *testing.T) {
	origin := newTestOrigin(t)
	a := startTestCache(t, origin)
	handler := NewHandler(a, nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/.card-cache/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d", rr.Code)
	}
	var st status
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Version != "v1.0.0" || len(st.Stores) != 2 {
		t.Fatalf("Status is %+v", st)
	}
	if st.Stores[1].Name != "static-v1.0.0" || st.Stores[1].Entries != len(testAssets) {
		t.Fatalf("Static store is %+v", st.Stores[1])
	}
}

func TestHandlerMetrics(t *testing.T) {
	origin := newTestOrigin(t)
	registry := prometheus.NewRegistry()
	a := startTestCache(t, origin)
	registry.MustRegister(a.metrics.installs)
	handler := NewHandler(a, registry, zerolog.Nop())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/.card-cache/metrics", nil))

	if body := rr.Body.String(); !strings.Contains(body, `card_cache_installs_total{result="ok"} 1`) {
		t.Fatalf("Metrics are %s", body)
	}
}

func TestHandlerServesCache(t *testing.T) {
	origin := newTestOrigin(t)
	a := startTestCache(t, origin)
	handler := NewHandler(a, nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/vcf/oriane.vcf", nil))

	if rr.Code != http.StatusOK || rr.Header().Get("Request-Id") == "" {
		t.Fatalf("Status is %d with headers %v", rr.Code, rr.Header())
	}
	if cs := rr.Header().Get("Cache-Status"); cs != "card-cache; hit; detail=generated" {
		t.Fatalf("Cache-Status is %s", cs)
	}
}
