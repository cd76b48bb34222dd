package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chainq/internal/banner"
	"chainq/internal/cli"
	"chainq/internal/config"
	"chainq/internal/dummy"
	"chainq/internal/report"
	"chainq/internal/storage"
	"chainq/internal/tui/styles"
)

var (
	cfgFile  string
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "chainq",
	Short: "chainq - scenario load testing",
	Long: `
chainq runs the computer database simulation: virtual users are injected
over a ramp, each executing a chain of HTTP requests with checks, pauses,
loops and retries, and the run ends with assertions over the response times.

Exit status is 0 when every assertion passed, 1 when one failed and 2 when
the run could not start.`,
	SilenceUsage: true,
	RunE:         runSimulation,
}

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the computer database simulation (default command)",
	SilenceUsage: true,
	RunE:         runSimulation,
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper(), cmd.Flags())
	if err != nil {
		exitCode = report.ExitFatal
		return err
	}

	log := newLogger(cfg.Level(), os.Stderr)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode = cli.Start(ctx, cfg, cmd.OutOrStdout(), log)
	return nil
}

// Execute runs the command line and exits with the run's status.
func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Error: "+err.Error()))
		if exitCode == 0 {
			exitCode = report.ExitFatal
		}
	}
	os.Exit(exitCode)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dummyCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chainq.yaml)")
	config.RegisterFlags(rootCmd.Flags())
	config.RegisterFlags(runCmd.Flags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".chainq")
		}
	}
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintln(os.Stderr, styles.Warn.Render("Config file not read: "+err.Error()))
	}
}

func newLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// --- Dummy Subcommand ---
var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a local computer database to test against",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		latency, _ := cmd.Flags().GetDuration("latency")
		jitter, _ := cmd.Flags().GetDuration("jitter")
		errorRate, _ := cmd.Flags().GetFloat64("error-rate")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := dummy.Start(dummy.ServerConfig{
			Port:      port,
			Latency:   latency,
			Jitter:    jitter,
			ErrorRate: errorRate,
		})
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

// --- History Subcommand ---
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("history")
		limit, _ := cmd.Flags().GetInt("limit")
		if path == "" {
			var err error
			if path, err = storage.DefaultPath(); err != nil {
				return err
			}
		}

		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List()
		if err != nil {
			return err
		}
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}
		printHistory(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
	dummyCmd.Flags().Duration("latency", 0, "Delay added to every response")
	dummyCmd.Flags().Duration("jitter", 0, "Random extra delay, up to this much")
	dummyCmd.Flags().Float64("error-rate", 0, "Share of requests answered with a 500, in [0, 1]")

	historyCmd.Flags().String("history", "", "Run history database (default $HOME/.chainq/history.db)")
	historyCmd.Flags().IntP("limit", "n", 20, "Show at most this many runs (0 = all)")
}

func printHistory(w io.Writer, runs []storage.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, styles.Subtle.Render("No runs recorded yet."))
		return
	}
	fmt.Fprintln(w, styles.Subtle.Render(fmt.Sprintf("%-20s %-36s %6s %8s %6s %9s  %s", "Time", "Run", "Users", "Reqs", "KO", "p95 (ms)", "Result")))
	for _, r := range runs {
		result := styles.Success.Render("PASSED")
		if !r.Passed {
			result = styles.Error.Render("FAILED")
		}
		if r.Aborted {
			result += styles.Warn.Render(" (aborted)")
		}
		fmt.Fprintf(w, "%-20s %-36s %6d %8d %6d %9.0f  %s\n",
			r.Start.Local().Format("2006-01-02 15:04:05"), r.ID, r.Users, r.Requests, r.Failed, r.P95Ms, result)
	}
}
