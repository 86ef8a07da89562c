package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chronicle/api/controllers"
	"github.com/angelmondragon/chronicle/api/responses"
	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/logger"
	"github.com/angelmondragon/chronicle/pkg/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func newTestRouter(deps map[string]controllers.Pinger) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := logger.New(logger.Options{ServiceName: "ops-test", Output: io.Discard})
	return NewOpsRouter(cfg, logg, reg, deps), reg
}

func TestHealthLive(t *testing.T) {
	router, _ := newTestRouter(nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "test", w.Header().Get("X-Chronicle-Env"))
	require.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestHealthReady(t *testing.T) {
	router, _ := newTestRouter(map[string]controllers.Pinger{
		"database": stubPinger{},
		"redis":    stubPinger{},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body responses.SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	data := body.Data.(map[string]any)
	require.Equal(t, "ready", data["status"])
	require.Equal(t, []any{"database", "redis"}, data["checks"])
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	router, _ := newTestRouter(map[string]controllers.Pinger{
		"database": stubPinger{},
		"nats":     stubPinger{err: errors.New("nats: connection closed")},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body responses.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "DEPENDENCY_ERROR", body.Error.Code)
	require.Equal(t, map[string]any{"nats": "nats: connection closed"}, body.Error.Details)
}

func TestMetricsEndpoint(t *testing.T) {
	router, reg := newTestRouter(nil)
	metrics.NewCronJobMetrics(reg).IncSuccess("weekly_award_auto_approve")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), `chronicle_cron_job_runs_total{job="weekly_award_auto_approve",result="success"} 1`))
}

func TestRecovererReturnsInternalError(t *testing.T) {
	router, _ := newTestRouter(map[string]controllers.Pinger{"panics": panicPinger{}})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

type panicPinger struct{}

func (panicPinger) Ping(context.Context) error { panic("boom") }
