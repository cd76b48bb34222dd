package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainq/internal/assertion"
	"chainq/internal/runner"
	"chainq/internal/stats"
)

func fixture() *runner.Result {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	var samples []stats.Sample
	for i := 0; i < 96; i++ {
		samples = append(samples, stats.Sample{Name: "Home", Scenario: "Users", UserID: "u", Start: start, Latency: 100 * time.Millisecond, Status: stats.OK, Code: 200, Bytes: 10})
	}
	for i := 0; i < 4; i++ {
		samples = append(samples, stats.Sample{Name: "Search", Scenario: "Users", UserID: "u", Start: start, Latency: 500 * time.Millisecond, Status: stats.KO, Code: 500, Error: "CheckFailed: status: but actually found 500"})
	}
	samples = append(samples, stats.Sample{Name: "Select", Scenario: "Users", UserID: "u", Start: start, Status: stats.Cancelled, Error: "Cancelled: context canceled"})

	asserts := []assertion.Assertion{
		assertion.Global().ResponseTime().Percentile(95).Lt(300),
		assertion.Global().ResponseTime().Percentile(99.9).Lt(1000),
	}
	return &runner.Result{
		RunID:          "run-1",
		Simulation:     "ComputerDatabaseSimulation",
		Start:          start,
		Duration:       10 * time.Second,
		Samples:        samples,
		Assertions:     assertion.Evaluate(samples, asserts),
		UsersScheduled: 10,
		UsersStarted:   10,
		UsersCompleted: 9,
		UsersCancelled: 1,
	}
}

func TestBuild(t *testing.T) {
	res := fixture()
	rep := Build(res, []float64{95, 99.9})

	assert.True(t, rep.Passed)
	assert.Equal(t, 100, rep.Global.Count)
	assert.Equal(t, 4, rep.Global.KO)
	assert.Equal(t, 1, rep.Global.Cancelled)
	assert.Equal(t, 10.0, rep.Global.RPS)
	assert.Equal(t, []Percentile{{50, 100}, {75, 100}, {95, 100}, {99, 500}, {99.9, 500}}, rep.Global.Percentiles)

	require.Len(t, rep.Requests, 3)
	assert.Equal(t, "Home", rep.Requests[0].Name)
	assert.Equal(t, 500.0, rep.Requests[1].Max)
	assert.Equal(t, 0, rep.Requests[2].Count)

	require.Len(t, rep.Failures, 1)
	assert.Equal(t, Failure{Request: "Search", Error: "CheckFailed: status: but actually found 500", Count: 4}, rep.Failures[0])

	require.Len(t, rep.Assertions, 2)
	assert.Equal(t, "Global: 95th percentile of response time is less than 300.0", rep.Assertions[0].Description)
	assert.Equal(t, ExitOK, ExitCode(res))
}

func TestExitCodeOnFailedAssertion(t *testing.T) {
	res := fixture()
	res.Assertions = assertion.Evaluate(res.Samples, []assertion.Assertion{assertion.Global().ResponseTime().Max().Lt(300)})
	assert.Equal(t, ExitFailed, ExitCode(res))
	assert.False(t, Build(res, nil).Passed)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, Build(fixture(), nil))
	out := buf.String()
	assert.Contains(t, out, "LOAD TEST RESULTS")
	assert.Contains(t, out, "FAILURE SUMMARY")
	assert.Contains(t, out, "4 x Search: CheckFailed")
	assert.Contains(t, out, "95th percentile of response time")
	assert.Contains(t, out, "p99")
}

func TestWriteCSV(t *testing.T) {
	res := fixture()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res.Samples))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(res.Samples)+1)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"1792141200000", "100", "Home", "200", "OK"}, rows[1][:5])
	assert.Equal(t, "true", rows[1][7])
	assert.Equal(t, "false", rows[97][7])
	last := rows[len(rows)-1]
	assert.Equal(t, "", last[3])
	assert.Equal(t, "Cancelled", last[4])
}

func TestExport(t *testing.T) {
	res := fixture()
	prefix := filepath.Join(t.TempDir(), "run")
	files, err := Export(prefix, res.Samples, Build(res, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + ".csv", prefix + "_summary.json"}, files)

	data, err := os.ReadFile(prefix + "_summary.json")
	require.NoError(t, err)
	var rep Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 100, rep.Global.Count)

	_, err = Export(filepath.Join(t.TempDir(), "missing", "dir", "run"), res.Samples, Build(res, nil))
	assert.Error(t, err)
}
