package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainq/internal/action"
	"chainq/internal/assertion"
	"chainq/internal/failure"
	"chainq/internal/feeder"
	"chainq/internal/injector"
	"chainq/internal/protocol"
	"chainq/internal/session"
	"chainq/internal/stats"
)

func okServer(t *testing.T, delay time.Duration) (*httptest.Server, *int64) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func options() Options {
	logger, _ := test.NewNullLogger()
	return Options{
		Transport:    protocol.NewHTTPTransport(5*time.Second, false),
		Seed:         1,
		Log:          logger,
		TickInterval: 10 * time.Millisecond,
	}
}

func TestRunCompletesEveryUser(t *testing.T) {
	srv, hits := okServer(t, 0)
	sim := Simulation{
		Name:     "basic",
		Protocol: protocol.HTTP(srv.URL),
		Populations: []Population{{
			Scenario: "Users",
			Chain:    action.Exec(action.HTTP("Home").Get("/"), action.HTTP("About").Get("/about")),
			Steps:    []injector.Step{injector.RampUsers(8).During(80 * time.Millisecond), injector.AtOnceUsers(2)},
		}},
		Assertions: []assertion.Assertion{assertion.Global().FailedRequests().Percent().Lte(0)},
	}
	r, err := NewRunner(sim, options(), nil)
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.UsersScheduled)
	assert.Equal(t, 10, res.UsersStarted)
	assert.Equal(t, 10, res.UsersCompleted)
	assert.Len(t, res.Samples, 20)
	assert.Equal(t, int64(20), atomic.LoadInt64(hits))
	assert.True(t, res.Passed())
	assert.Equal(t, 0, res.DroppedSamples)

	r.Collector.Record(stats.Sample{Name: "Late", Scenario: "Users", Status: stats.OK})
	assert.Equal(t, 1, r.Collector.Dropped())
	assert.Len(t, res.Samples, 20, "frozen samples are not extended")
	assert.GreaterOrEqual(t, res.Duration, 80*time.Millisecond)
	assert.Equal(t, int64(0), r.GetInflight())

	ids := map[string]bool{}
	for _, s := range res.Samples {
		ids[s.UserID] = true
	}
	assert.Len(t, ids, 10, "every user gets its own id")
}

func TestUserFailureIsCountedAndIsolated(t *testing.T) {
	srv, _ := okServer(t, 0)
	sim := Simulation{
		Protocol: protocol.HTTP(srv.URL),
		Populations: []Population{
			{
				Scenario: "Failing",
				Chain:    action.Exec(action.HTTP("Fail").Get("/fail")).ExitHereIfFailed().Exec(action.HTTP("Never").Get("/")),
				Steps:    []injector.Step{injector.AtOnceUsers(3)},
			},
			{
				Scenario: "Passing",
				Chain:    action.Exec(action.HTTP("Home").Get("/")),
				Steps:    []injector.Step{injector.AtOnceUsers(2)},
			},
		},
		Assertions: []assertion.Assertion{assertion.Details("Home").SuccessfulRequests().Percent().Gte(100)},
	}
	r, err := NewRunner(sim, options(), nil)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.UsersFailed)
	assert.Equal(t, 2, res.UsersCompleted)
	for _, s := range res.Samples {
		assert.NotEqual(t, "Never", s.Name)
	}
	assert.True(t, res.Passed())
}

func TestMaxDurationAbortsRun(t *testing.T) {
	srv, _ := okServer(t, 2*time.Second)
	sim := Simulation{
		Protocol: protocol.HTTP(srv.URL),
		Populations: []Population{{
			Scenario: "Slow",
			Chain:    action.Exec(action.HTTP("Slow").Get("/")),
			Steps:    []injector.Step{injector.AtOnceUsers(2), injector.NothingFor(time.Minute), injector.AtOnceUsers(5)},
		}},
	}
	opts := options()
	opts.MaxDuration = 100 * time.Millisecond
	r, err := NewRunner(sim, opts, nil)
	require.NoError(t, err)

	start := time.Now()
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Aborted)
	assert.Equal(t, 2, res.UsersStarted, "pending starts are dropped")
	assert.Equal(t, 2, res.UsersCancelled)
	require.Len(t, res.Samples, 2)
	for _, s := range res.Samples {
		assert.Equal(t, stats.Cancelled, s.Status)
	}
}

func TestParentCancellation(t *testing.T) {
	srv, _ := okServer(t, 0)
	sim := Simulation{
		Protocol: protocol.HTTP(srv.URL),
		Populations: []Population{{
			Scenario: "Pausing",
			Chain:    action.Exec(action.HTTP("Home").Get("/")).Pause(time.Minute).Exec(action.HTTP("Late").Get("/")),
			Steps:    []injector.Step{injector.AtOnceUsers(3)},
		}},
	}
	r, err := NewRunner(sim, options(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, 3, res.UsersCancelled)
	assert.Len(t, res.Samples, 3)
}

func TestFeederSeedsSessions(t *testing.T) {
	srv, _ := okServer(t, 0)
	f, err := feeder.New("ids", []feeder.Record{{"id": "1"}, {"id": "2"}}, feeder.Queue, 1)
	require.NoError(t, err)

	sim := Simulation{
		Protocol: protocol.HTTP(srv.URL),
		Populations: []Population{{
			Scenario: "Fed",
			Chain:    action.Exec(action.HTTP("Item #{id}").Get("/items/#{id}")),
			Steps:    []injector.Step{injector.RampUsers(3).During(30 * time.Millisecond)},
			Feeder:   f,
		}},
	}
	r, err := NewRunner(sim, options(), nil)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.UsersFailed, "the third user finds the queue empty")
	require.Len(t, res.Samples, 2)
	assert.ElementsMatch(t, []string{"Item 1", "Item 2"}, []string{res.Samples[0].Name, res.Samples[1].Name})
}

func TestSeededRandomIsReproducible(t *testing.T) {
	srv, _ := okServer(t, 0)
	draws := func() []int {
		var mu sync.Mutex
		var got []int
		sim := Simulation{
			Protocol: protocol.HTTP(srv.URL),
			Populations: []Population{{
				Scenario: "Dice",
				Chain: action.Func(func(_ context.Context, env *action.Env, s session.Session) (session.Session, action.Outcome) {
					mu.Lock()
					got = append(got, env.Rand.Intn(1000000))
					mu.Unlock()
					return s, action.Outcome{}
				}),
				Steps: []injector.Step{injector.AtOnceUsers(4)},
			}},
		}
		r, err := NewRunner(sim, options(), nil)
		require.NoError(t, err)
		_, err = r.Run(context.Background())
		require.NoError(t, err)
		sort.Ints(got)
		return got
	}
	first := draws()
	assert.Len(t, first, 4)
	assert.Equal(t, first, draws())
}

func TestUpdatesAreStreamed(t *testing.T) {
	srv, _ := okServer(t, 20*time.Millisecond)
	updates := make(StatsUpdateChan, 100)
	sim := Simulation{
		Protocol: protocol.HTTP(srv.URL),
		Populations: []Population{{
			Scenario: "Users",
			Chain:    action.Exec(action.HTTP("Home").Get("/")).Pause(50 * time.Millisecond),
			Steps:    []injector.Step{injector.RampUsers(5).During(50 * time.Millisecond)},
		}},
	}
	r, err := NewRunner(sim, options(), updates)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	var last StatsSnapshot
	n := len(updates)
	require.Greater(t, n, 1)
	for i := 0; i < n; i++ {
		last = <-updates
	}
	assert.True(t, last.Done)
	assert.Equal(t, uint64(5), last.Requests)
	assert.Equal(t, int64(5), last.Started)
	assert.Equal(t, 5, last.Scheduled)
	assert.Equal(t, int64(0), last.Inflight)
}

func TestNewRunnerRejectsBadSimulation(t *testing.T) {
	chain := action.Exec(action.HTTP("Home").Get("/"))
	cases := []Simulation{
		{},
		{Protocol: protocol.HTTP("not a url")},
		{Protocol: protocol.HTTP("http://localhost")},
		{Protocol: protocol.HTTP("http://localhost"), Populations: []Population{{Scenario: "x"}}},
		{Protocol: protocol.HTTP("http://localhost"), Populations: []Population{{Scenario: "x", Chain: chain, Steps: []injector.Step{{Count: -1}}}}},
	}
	for i, sim := range cases {
		_, err := NewRunner(sim, options(), nil)
		assert.True(t, failure.IsKind(err, failure.Config), "case %d: %v", i, err)
	}

	_, err := NewRunner(Simulation{Protocol: protocol.HTTP("http://localhost"), Populations: []Population{{Scenario: "x", Chain: chain}}}, Options{}, nil)
	assert.True(t, failure.IsKind(err, failure.Config))
}
