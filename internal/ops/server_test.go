package ops

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/houzhh15/geopipe/internal/filter"
	"github.com/houzhh15/geopipe/internal/geoip"
)

type fakePipeline struct {
	running bool
	err     error
}

func (p *fakePipeline) HealthCheck() error { return p.err }
func (p *fakePipeline) IsRunning() bool    { return p.running }

type fakeLookup struct{}

func (fakeLookup) Lookup(ip net.IP) geoip.Result {
	if ip.String() == "8.8.8.8" {
		rec := &geoip.Record{}
		rec.Country.IsoCode = "US"
		rec.Country.Names = map[string]string{"en": "United States"}
		rec.City.Names = map[string]string{"en": "Mountain View"}
		return geoip.Result{Status: geoip.StatusFound, Record: rec}
	}
	return geoip.Result{Status: geoip.StatusNotFound}
}

func newTestServer(t *testing.T, pl Pipeline, gatherer prometheus.Gatherer) *Server {
	t.Helper()

	f, err := filter.NewWithLookuper(&filter.Config{
		Source: "client_ip",
		Fields: []string{"city_name", "country_name", "country_code2"},
	}, fakeLookup{}, nil)
	require.NoError(t, err)

	return NewServer(DefaultConfig(), pl, f, nil, gatherer, zaptest.NewLogger(t))
}

func doRequest(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var body map[string]any
	if rr.Body.Len() > 0 && json.Valid(rr.Body.Bytes()) {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestServer_Version(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr, body := doRequest(t, s, "/version")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "geopipe", body["service"])
	assert.NotEmpty(t, body["version"])
}

func TestServer_HealthHealthy(t *testing.T) {
	s := newTestServer(t, &fakePipeline{running: true}, nil)

	rr, body := doRequest(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["healthy"])
}

func TestServer_HealthUnhealthyPipeline(t *testing.T) {
	s := newTestServer(t, &fakePipeline{err: errors.New("pipeline is not running")}, nil)

	rr, body := doRequest(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, false, body["healthy"])

	pipelineStatus, ok := body["pipeline"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, pipelineStatus["healthy"])
	assert.Contains(t, pipelineStatus["error"], "not running")
}

func TestServer_Stats(t *testing.T) {
	s := newTestServer(t, &fakePipeline{running: true}, nil)

	rr, body := doRequest(t, s, "/stats")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["running"])
}

func TestServer_StatsWithoutPipeline(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr, _ := doRequest(t, s, "/stats")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_LookupFound(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr, body := doRequest(t, s, "/debug/lookup/8.8.8.8")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "found", body["status"])
	assert.Equal(t, true, body["matched"])

	geo, ok := body["geoip"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Mountain View", geo["city_name"])
	assert.Equal(t, "United States", geo["country_name"])
	assert.Equal(t, "US", geo["country_code2"])
}

func TestServer_LookupNotFound(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr, body := doRequest(t, s, "/debug/lookup/10.0.0.1")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", body["status"])
	assert.Equal(t, false, body["matched"])
}

func TestServer_LookupInvalidInput(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr, body := doRequest(t, s, "/debug/lookup/not-an-ip")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "invalid_input", body["status"])
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geopipe",
		Name:      "test_total",
		Help:      "test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	s := newTestServer(t, nil, reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "geopipe_test_total 1")
}

func TestServer_MetricsDisabledWithoutGatherer(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr, _ := doRequest(t, s, "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
