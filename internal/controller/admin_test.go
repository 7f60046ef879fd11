package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/llm-d-cpu-hotplug/api/v1alpha1"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/metrics"
)

func newAdminFixture(t *testing.T) (*engineFixture, http.Handler) {
	t.Helper()
	f := newEngineFixture(t, 0)
	reg := prom.NewRegistry()
	require.NoError(t, metrics.RegisterCollectors(reg, f.engine.latency, f.engine, "test", f.engine.log))
	return f, NewAdminHandler(f.engine, reg)
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminStatus(t *testing.T) {
	_, h := newAdminFixture(t)

	rec := serve(h, http.MethodGet, "/api/v1alpha1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status v1alpha1.EngineStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "test", status.InstanceID)
	assert.False(t, status.Enabled)
	assert.Equal(t, "0-3", status.Possible)
	assert.Equal(t, "0", status.Online)
	assert.Nil(t, status.Target)
	require.Len(t, status.Cores, 4)
	assert.True(t, status.Cores[0].Online)
	assert.False(t, status.Cores[3].Online)
	require.NotNil(t, status.Config.Divisor)
	assert.Equal(t, uint32(25), *status.Config.Divisor)
}

func TestAdminPutConfig(t *testing.T) {
	f, h := newAdminFixture(t)

	rec := serve(h, http.MethodPut, "/api/v1alpha1/config", `{"divisor":10,"minDownInterval":"250ms"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint32(10), f.engine.Config().Divisor)
	assert.Equal(t, "250ms", f.engine.Config().MinDownInterval.String())

	before := f.engine.Config()
	testCases := []struct {
		name string
		body string
	}{
		{name: "zero divisor", body: `{"divisor":0}`},
		{name: "iowait above 100", body: `{"iowaitThreshold":150}`},
		{name: "negative duration", body: `{"startDelay":"-1s"}`},
		{name: "unknown field", body: `{"divisr":3}`},
		{name: "not json", body: `divisor=3`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, http.MethodPut, "/api/v1alpha1/config", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp v1alpha1.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, before, f.engine.Config())
		})
	}
}

func TestAdminGetConfig(t *testing.T) {
	_, h := newAdminFixture(t)

	rec := serve(h, http.MethodGet, "/api/v1alpha1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var spec v1alpha1.EngineConfigSpec
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	require.NotNil(t, spec.PollInterval)
	assert.Equal(t, "1ms", spec.PollInterval.Duration.String())
}

func TestAdminPutEnabled(t *testing.T) {
	f, h := newAdminFixture(t)

	rec := serve(h, http.MethodPut, "/api/v1alpha1/enabled", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.engine.Enabled())

	rec = serve(h, http.MethodPut, "/api/v1alpha1/enabled", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.engine.Enabled())

	rec = serve(h, http.MethodPut, "/api/v1alpha1/enabled", `{"enabled":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, f.engine.SetEnabled(context.Background(), false))
}

func TestAdminHealthAndMetrics(t *testing.T) {
	_, h := newAdminFixture(t)

	rec := serve(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hotplugd_cores_possible{instance="test"} 4`)

	rec = serve(h, http.MethodPost, "/api/v1alpha1/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
