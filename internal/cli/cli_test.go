package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainq/internal/config"
	"chainq/internal/dummy"
	"chainq/internal/failure"
	"chainq/internal/report"
	"chainq/internal/storage"
)

func testConfig(t *testing.T, url string) config.Config {
	cfg := config.Defaults()
	cfg.BaseURL = url
	cfg.Users = 3
	cfg.Ramp = 100 * time.Millisecond
	cfg.PauseScale = 0.001
	cfg.Timeout = 5 * time.Second
	cfg.MaxP95 = 10000
	cfg.Seed = 7
	cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestStartAgainstDummy(t *testing.T) {
	srv := httptest.NewServer(dummy.NewRouter(dummy.ServerConfig{Quiet: true}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Population = "all"
	cfg.OutPrefix = filepath.Join(t.TempDir(), "run")

	var out bytes.Buffer
	log, hook := test.NewNullLogger()
	code := Start(context.Background(), cfg, &out, log)
	require.Equal(t, report.ExitOK, code, out.String())

	assert.Contains(t, out.String(), "STARTING CHAINQ LOAD TEST")
	assert.Contains(t, out.String(), "LOAD TEST RESULTS")
	assert.Contains(t, out.String(), "95th percentile of response time")
	assert.FileExists(t, cfg.OutPrefix+".csv")
	assert.FileExists(t, cfg.OutPrefix+"_summary.json")

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message == "Running test with 4 users" {
			found = true
		}
	}
	assert.True(t, found, "before hook logs the user count")

	store, err := storage.Open(cfg.HistoryPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ComputerDatabaseSimulation", runs[0].Simulation)
	assert.Equal(t, 4, runs[0].Users)
	assert.True(t, runs[0].Passed)
}

func TestStartFailedAssertion(t *testing.T) {
	srv := httptest.NewServer(dummy.NewRouter(dummy.ServerConfig{Quiet: true, ErrorRate: 1}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Users = 2
	cfg.MaxFailedPercent = 0

	var out bytes.Buffer
	log, _ := test.NewNullLogger()
	assert.Equal(t, report.ExitFailed, Start(context.Background(), cfg, &out, log))
	assert.Contains(t, out.String(), "FAILURE SUMMARY")
}

func TestStartFatal(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.FeederPath = filepath.Join(t.TempDir(), "missing.csv")

	log, hook := test.NewNullLogger()
	assert.Equal(t, report.ExitFatal, Start(context.Background(), cfg, &bytes.Buffer{}, log))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, failure.FeederLoad, hook.LastEntry().Data["kind"])

	_, err := os.Stat(cfg.HistoryPath)
	assert.True(t, os.IsNotExist(err), "fatal runs are not recorded")

	cfg = testConfig(t, "http://127.0.0.1:1")
	cfg.Population = "robots"
	assert.Equal(t, report.ExitFatal, Start(context.Background(), cfg, &bytes.Buffer{}, log))
}

func TestStartCustomFeeder(t *testing.T) {
	srv := httptest.NewServer(dummy.NewRouter(dummy.ServerConfig{Quiet: true}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "terms.csv")
	require.NoError(t, os.WriteFile(path, []byte("searchCriterion,searchComputerName\neee,ASUS Eee PC 1005PE\n"), 0644))

	cfg := testConfig(t, srv.URL)
	cfg.FeederPath = path
	cfg.FeederStrategy = "circular"
	cfg.MaxFailedPercent = 0

	log, _ := test.NewNullLogger()
	assert.Equal(t, report.ExitOK, Start(context.Background(), cfg, &bytes.Buffer{}, log))
}

func TestAssertionsFor(t *testing.T) {
	cfg := config.Defaults()
	got := assertionsFor(cfg)
	require.Len(t, got, 1)
	assert.Equal(t, "Global: 95th percentile of response time is less than 300.0", got[0].String())

	cfg.MaxP95 = 0
	assert.Empty(t, assertionsFor(cfg))
	assert.NotNil(t, assertionsFor(cfg))

	cfg.MaxFailedPercent = 1
	require.Len(t, assertionsFor(cfg), 1)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----]", progressBar(0, 4))
	assert.Equal(t, "[██--]", progressBar(0.5, 4))
	assert.Equal(t, "[████]", progressBar(2, 4))
}
