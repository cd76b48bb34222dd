// Package computerdb is the built-in simulation: users searching a computer
// database, and admins who also browse its pages and add computers.
package computerdb

import (
	"bytes"
	_ "embed"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"chainq/internal/action"
	"chainq/internal/assertion"
	"chainq/internal/check"
	"chainq/internal/failure"
	"chainq/internal/feeder"
	"chainq/internal/injector"
	"chainq/internal/protocol"
	"chainq/internal/runner"
	"chainq/internal/session"
)

//go:embed search.csv
var searchCSV []byte

const (
	DefaultBaseURL = "https://computer-database.gatling.io"

	PopulationUsers  = "users"
	PopulationAdmins = "admins"
	PopulationAll    = "all"
)

// Options select and size the populations.
type Options struct {
	BaseURL    string
	Users      int
	Ramp       time.Duration
	Population string

	// Headers override the protocol defaults.
	Headers map[string]string

	// Feeder replaces the embedded search terms.
	Feeder *feeder.Feeder
	Seed   int64

	// Assertions replace the default p95 < 300ms.
	Assertions []assertion.Assertion
}

// DefaultFeeder serves the embedded search terms at random.
func DefaultFeeder(seed int64) (*feeder.Feeder, error) {
	records, err := feeder.ParseCSV(bytes.NewReader(searchCSV))
	if err != nil {
		return nil, failure.Wrap(failure.FeederLoad, "search.csv", err)
	}
	return feeder.New("search.csv", records, feeder.Random, seed)
}

// Protocol is the browser-like protocol the simulation runs with.
func Protocol(baseURL string, headers map[string]string) *protocol.Protocol {
	p := protocol.HTTP(baseURL).
		AcceptHeader("text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		AcceptLanguageHeader("en-US,en;q=0.5").
		AcceptEncodingHeader("gzip, deflate").
		UserAgentHeader("Mozilla/5.0 (Macintosh; Intel Mac OS X 10.8; rv:16.0) Gecko/20100101 Firefox/16.0")
	for k, v := range headers {
		p.Header(k, v)
	}
	return p
}

// Search opens the home page, searches for a fed term and opens the
// matching computer.
func Search(f *feeder.Feeder) *action.Chain {
	return action.Exec(action.HTTP("Home").Get("/")).
		Pause(time.Second).
		Feed(f).
		Exec(action.HTTP("Search").
			Get("/computers").
			QueryParam("f", "#{searchCriterion}").
			Check(check.CSS("a:contains('#{searchComputerName}')", "href").SaveAs("computerUrl"))).
		Pause(time.Second).
		Exec(action.HTTP("Select").
			Get("#{computerUrl}").
			Check(check.StatusIs(200))).
		Pause(time.Second)
}

// Browse walks the first four list pages.
func Browse() action.Action {
	return action.Repeat(4, "i").On(
		action.HTTP("Page #{i}").Get("/computers?p=#{i}"),
		action.Pause(time.Second),
	)
}

// Edit creates a computer. The post's expected status is drawn from
// {200, 201} on every attempt, so about half the attempts fail and get
// retried once; a user whose both attempts fail stops here.
func Edit() action.Action {
	post := action.HTTP("Post").
		Post("/computers").
		FormParam("name", "Beautiful Computer").
		FormParam("introduced", "2012-05-30").
		FormParam("discontinued", "").
		FormParam("company", "37").
		Check(check.StatusMatches("status.is(200 + random(2))", func(code int, _ session.Session, rnd *rand.Rand) bool {
			return code == 200+rnd.Intn(2)
		}))

	return action.Exec(
		action.TryMax(2).On(
			action.HTTP("Form").Get("/computers/new"),
			action.Pause(time.Second),
			post,
		),
	).ExitHereIfFailed()
}

// New builds the simulation described by opts.
func New(opts Options) (runner.Simulation, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Users <= 0 {
		return runner.Simulation{}, failure.New(failure.Config, "computerdb", "users must be positive, got %d", opts.Users)
	}
	f := opts.Feeder
	if f == nil {
		var err error
		if f, err = DefaultFeeder(opts.Seed); err != nil {
			return runner.Simulation{}, err
		}
	}

	users := runner.Population{
		Scenario: "Users",
		Chain:    Search(f),
	}
	admins := runner.Population{
		Scenario: "Admins",
		Chain:    action.Exec(Search(f), Browse(), Edit()),
	}

	var pops []runner.Population
	switch opts.Population {
	case PopulationUsers, "":
		users.Steps = ramp(opts.Users, opts.Ramp)
		pops = append(pops, users)
	case PopulationAdmins:
		admins.Steps = ramp(opts.Users, opts.Ramp)
		pops = append(pops, admins)
	case PopulationAll:
		nAdmins := opts.Users / 5
		if nAdmins < 1 {
			nAdmins = 1
		}
		users.Steps = ramp(opts.Users, opts.Ramp)
		admins.Steps = ramp(nAdmins, opts.Ramp)
		pops = append(pops, users, admins)
	default:
		return runner.Simulation{}, failure.New(failure.Config, "computerdb", "unknown population %q (want users, admins or all)", opts.Population)
	}

	asserts := opts.Assertions
	if asserts == nil {
		asserts = []assertion.Assertion{assertion.Global().ResponseTime().Percentile(95).Lt(300)}
	}

	total := 0
	for _, p := range pops {
		total += injector.Total(p.Steps)
	}
	return runner.Simulation{
		Name:        "ComputerDatabaseSimulation",
		Protocol:    Protocol(opts.BaseURL, opts.Headers),
		Populations: pops,
		Assertions:  asserts,
		Before: func(log logrus.FieldLogger) {
			log.Infof("Running test with %d users", total)
		},
	}, nil
}

func ramp(n int, d time.Duration) []injector.Step {
	return []injector.Step{injector.RampUsers(n).During(d)}
}
