package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainq/internal/stats"
)

// gather returns every series of the named family keyed by its labels.
func gather(t *testing.T, e *Exporter, name string) map[string]*dto.Metric {
	mfs, err := e.Registry().Gather()
	require.NoError(t, err)
	out := map[string]*dto.Metric{}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				key += lp.GetName() + "=" + lp.GetValue() + ","
			}
			out[key] = m
		}
	}
	return out
}

func TestExporterObserve(t *testing.T) {
	e := NewExporter()
	e.Observe(stats.Sample{Scenario: "Users", Name: "Home", Status: stats.OK, Latency: 120 * time.Millisecond, Bytes: 100})
	e.Observe(stats.Sample{Scenario: "Users", Name: "Home", Status: stats.KO, Latency: 40 * time.Millisecond, Bytes: 10})
	e.Observe(stats.Sample{Scenario: "Users", Name: "Home", Status: stats.Cancelled})
	e.SetInflight(3)

	reqs := gather(t, e, "chainq_requests_total")
	require.Len(t, reqs, 3)
	assert.Equal(t, 1.0, reqs["request=Home,scenario=Users,status=OK,"].GetCounter().GetValue())
	assert.Equal(t, 1.0, reqs["request=Home,scenario=Users,status=CANCELLED,"].GetCounter().GetValue())

	bytes := gather(t, e, "chainq_response_bytes_total")
	assert.Equal(t, 110.0, bytes["scenario=Users,"].GetCounter().GetValue())

	latency := gather(t, e, "chainq_response_time_seconds")
	require.Len(t, latency, 1)
	assert.Equal(t, uint64(2), latency["request=Home,scenario=Users,"].GetHistogram().GetSampleCount(), "cancelled samples carry no latency")

	inflight := gather(t, e, "chainq_users_inflight")
	assert.Equal(t, 3.0, inflight[""].GetGauge().GetValue())
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter()
	e.Observe(stats.Sample{Scenario: "Admins", Name: "Post", Status: stats.OK, Latency: time.Millisecond})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chainq_requests_total{request="Post",scenario="Admins",status="OK"} 1`)
	assert.Contains(t, string(body), "chainq_response_time_seconds_bucket")
}

func TestExporterRouter(t *testing.T) {
	e := NewExporter()
	e.SetInflight(2)

	srv := httptest.NewServer(e.Router())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chainq_users_inflight 2")

	resp, err = srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
