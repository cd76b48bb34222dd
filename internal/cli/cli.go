// Package cli runs a configured simulation from the command line: it prints
// progress, the final summary and the exported files, and maps the outcome
// to an exit status.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"chainq/internal/assertion"
	"chainq/internal/config"
	"chainq/internal/failure"
	"chainq/internal/feeder"
	"chainq/internal/metrics"
	"chainq/internal/protocol"
	"chainq/internal/report"
	"chainq/internal/runner"
	"chainq/internal/simulations/computerdb"
	"chainq/internal/stats"
	"chainq/internal/storage"
	"chainq/internal/tui/live"
)

const rule = "======================================================================"

// Start executes the simulation described by cfg and returns the process
// exit status.
func Start(ctx context.Context, cfg config.Config, out io.Writer, log logrus.FieldLogger) int {
	printHeader(out, cfg)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim, err := buildSimulation(cfg, seed)
	if err != nil {
		return fatal(log, err)
	}

	opts := runner.Options{
		Transport:   protocol.NewHTTPTransport(cfg.Timeout, cfg.Insecure),
		Seed:        seed,
		MaxDuration: cfg.MaxDuration,
		PauseScale:  cfg.PauseScale,
		Log:         log,
	}
	var exporter *metrics.Exporter
	if cfg.MetricsAddr != "" {
		exporter = metrics.NewExporter()
		opts.Observers = []stats.Observer{exporter}
	}

	updates := make(runner.StatsUpdateChan, 100)
	r, err := runner.NewRunner(sim, opts, updates)
	if err != nil {
		return fatal(log, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var res *runner.Result
	finished := make(chan struct{})
	g, gctx := errgroup.WithContext(runCtx)

	var program *tea.Program
	if cfg.TUI {
		program = tea.NewProgram(live.NewModel(sim.Name, updates, cancel), tea.WithOutput(out), tea.WithContext(gctx))
	}

	g.Go(func() error {
		defer close(finished)
		var err error
		res, err = r.Run(gctx)
		if program != nil {
			program.Send(live.FinishedMsg{})
		}
		return err
	})

	if exporter != nil {
		g.Go(func() error {
			serveMetrics(gctx, finished, exporter, r, cfg.MetricsAddr, log)
			return nil
		})
	}

	g.Go(func() error {
		if program != nil {
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				log.WithError(err).Warn("dashboard stopped")
			}
			return nil
		}
		watch(out, updates, finished)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fatal(log, err)
	}
	if res == nil {
		return fatal(log, failure.New(failure.Unknown, "run", "no result"))
	}

	rep := report.Build(res, assertion.Percentiles(sim.Assertions))
	report.Print(out, rep)

	if cfg.OutPrefix != "" {
		fmt.Fprintf(out, "\n💾 Generating reports with prefix: %s\n", cfg.OutPrefix)
		files, err := report.Export(cfg.OutPrefix, res.Samples, rep)
		if err != nil {
			log.WithError(err).Error("export failed")
		} else {
			fmt.Fprintf(out, "✅ Reports saved to %s\n", strings.Join(files, ", "))
		}
	}

	saveHistory(cfg.HistoryPath, rep, log)
	return report.ExitCode(res)
}

func fatal(log logrus.FieldLogger, err error) int {
	log.WithField("kind", failure.KindOf(err)).Error(err)
	return report.ExitFatal
}

func buildSimulation(cfg config.Config, seed int64) (runner.Simulation, error) {
	headers, err := cfg.HeaderMap()
	if err != nil {
		return runner.Simulation{}, err
	}

	var f *feeder.Feeder
	if cfg.FeederPath != "" {
		strategy, err := feeder.ParseStrategy(cfg.FeederStrategy)
		if err != nil {
			return runner.Simulation{}, err
		}
		records, err := feeder.LoadCSV(cfg.FeederPath)
		if err != nil {
			return runner.Simulation{}, err
		}
		if f, err = feeder.New(filepath.Base(cfg.FeederPath), records, strategy, seed); err != nil {
			return runner.Simulation{}, err
		}
	}

	return computerdb.New(computerdb.Options{
		BaseURL:    cfg.BaseURL,
		Users:      cfg.Users,
		Ramp:       cfg.Ramp,
		Population: cfg.Population,
		Headers:    headers,
		Feeder:     f,
		Seed:       seed,
		Assertions: assertionsFor(cfg),
	})
}

// assertionsFor never returns nil, so disabling both bounds runs without
// assertions.
func assertionsFor(cfg config.Config) []assertion.Assertion {
	out := []assertion.Assertion{}
	if cfg.MaxP95 > 0 {
		out = append(out, assertion.Global().ResponseTime().Percentile(95).Lt(cfg.MaxP95))
	}
	if cfg.MaxFailedPercent >= 0 {
		out = append(out, assertion.Global().FailedRequests().Percent().Lte(cfg.MaxFailedPercent))
	}
	return out
}

// serveMetrics exposes the exporter until the run has finished.
func serveMetrics(ctx context.Context, finished <-chan struct{}, e *metrics.Exporter, r *runner.Runner, addr string, log logrus.FieldLogger) {
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-finished:
				e.SetInflight(0)
				stop()
				return
			case <-srvCtx.Done():
				return
			case <-ticker.C:
				e.SetInflight(r.GetInflight())
			}
		}
	}()

	if err := e.Serve(srvCtx, addr, log); err != nil {
		log.WithError(err).Warn("metrics endpoint stopped")
	}
}

func saveHistory(path string, rep *report.Report, log logrus.FieldLogger) {
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			log.WithError(err).Warn("history disabled")
			return
		}
	}
	store, err := storage.Open(path)
	if err != nil {
		log.WithError(err).Warn("history disabled")
		return
	}
	defer store.Close()

	if err := store.Save(storage.FromReport(rep)); err != nil {
		log.WithError(err).Warn("could not record run")
	}
}

// watch prints a progress line for every snapshot until the run finishes.
func watch(out io.Writer, updates runner.StatsUpdateChan, finished <-chan struct{}) {
	var last runner.StatsSnapshot
	for {
		select {
		case s := <-updates:
			last = s
			printProgress(out, s)
		case <-finished:
			if last.Requests > 0 || last.Started > 0 {
				fmt.Fprintln(out)
			}
			return
		}
	}
}

func printProgress(out io.Writer, s runner.StatsSnapshot) {
	pct := 1.0
	if s.Expected > 0 {
		pct = s.Elapsed.Seconds() / s.Expected.Seconds()
	}
	if pct > 1.0 {
		pct = 1.0
	}
	rps := 0.0
	if s.Elapsed.Seconds() > 0 {
		rps = float64(s.Requests) / s.Elapsed.Seconds()
	}

	if pct >= 1.0 && s.Inflight > 0 {
		fmt.Fprintf(out, "\r%s %3.0f%% | %s/%s | Draining: %d users...                ",
			progressBar(1.0, 20), 100.0,
			s.Elapsed.Round(time.Second), s.Expected,
			s.Inflight)
		return
	}

	fmt.Fprintf(out, "\r%s %3.0f%% | %s/%s | Users: %d/%d | Active: %3d | RPS: %.1f | OK: %d | KO: %d",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second), s.Expected,
		s.Started, s.Scheduled,
		s.Inflight,
		rps,
		s.Success,
		s.Fail,
	)
}

func printHeader(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "\n🚀 STARTING CHAINQ LOAD TEST\n")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Target URL : %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "Population : %s\n", cfg.Population)
	fmt.Fprintf(out, "Users      : %d over %s\n", cfg.Users, cfg.Ramp)
	fmt.Fprintf(out, "Timeout    : %s\n", cfg.Timeout)
	if cfg.MaxDuration > 0 {
		fmt.Fprintf(out, "Max        : %s\n", cfg.MaxDuration)
	}
	fmt.Fprintf(out, "%s\n\n", rule)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
