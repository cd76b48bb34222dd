package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"chainq/internal/tui/styles"
)

const rule = "======================================================================"

// Print writes the human summary of rep.
func Print(w io.Writer, rep *Report) {
	fmt.Fprintf(w, "\n\n📊 LOAD TEST RESULTS\n")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Simulation     : %s\n", rep.Simulation)
	fmt.Fprintf(w, "Run            : %s (seed %d)\n", rep.RunID, rep.Seed)
	fmt.Fprintf(w, "Total Duration : %s\n", rep.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Users          : %d started / %d scheduled, %d completed, %d failed, %d cancelled\n",
		rep.Users.Started, rep.Users.Scheduled, rep.Users.Completed, rep.Users.Failed, rep.Users.Cancelled)
	if rep.Aborted {
		fmt.Fprintln(w, styles.Warn.Render("Run aborted before every user finished"))
	}

	fmt.Fprintf(w, "\n⏱️  RESPONSE TIMES (ms)\n")
	fmt.Fprintln(w, tableHeader(rep.Global))
	fmt.Fprintln(w, tableRow(rep.Global))
	for _, r := range rep.Requests {
		fmt.Fprintln(w, tableRow(r))
	}

	if len(rep.Failures) > 0 {
		fmt.Fprintf(w, "\n❌ FAILURE SUMMARY\n")
		for _, f := range rep.Failures {
			fmt.Fprintf(w, "   %d x %s: %s\n", f.Count, f.Request, f.Error)
		}
	}

	if len(rep.Assertions) > 0 {
		fmt.Fprintf(w, "\n✅ ASSERTIONS\n")
		for _, a := range rep.Assertions {
			fmt.Fprintf(w, "   %s\n", assertionLine(a))
		}
	}
	fmt.Fprintln(w, rule)
}

func assertionLine(a AssertionOutcome) string {
	switch {
	case a.Empty:
		return styles.Error.Render("KO") + " " + a.Description + " (no samples)"
	case a.Passed:
		return styles.Success.Render("OK") + " " + a.Description + fmt.Sprintf(" (actual %.1f)", a.Value)
	}
	return styles.Error.Render("KO") + " " + a.Description + fmt.Sprintf(" (actual %.1f)", a.Value)
}

func tableHeader(r RequestStats) string {
	cols := []string{fmt.Sprintf("%-24s", "Request"), pad("count"), pad("ok"), pad("ko"), pad("min"), pad("mean")}
	for _, p := range r.Percentiles {
		cols = append(cols, pad("p"+strconv.FormatFloat(p.P, 'f', -1, 64)))
	}
	cols = append(cols, pad("max"), pad("rps"))
	return styles.Subtle.Render(strings.Join(cols, " "))
}

func tableRow(r RequestStats) string {
	name := r.Name
	if len(name) > 24 {
		name = name[:21] + "..."
	}
	cols := []string{
		fmt.Sprintf("%-24s", name),
		pad(strconv.Itoa(r.Count)),
		pad(strconv.Itoa(r.OK)),
		koCell(r.KO),
		pad(ms(r.Min)),
		pad(ms(r.Mean)),
	}
	for _, p := range r.Percentiles {
		cols = append(cols, pad(ms(p.Ms)))
	}
	cols = append(cols, pad(ms(r.Max)), pad(fmt.Sprintf("%.1f", r.RPS)))
	return strings.Join(cols, " ")
}

func koCell(n int) string {
	cell := pad(strconv.Itoa(n))
	if n > 0 {
		return styles.Error.Render(cell)
	}
	return cell
}

func pad(s string) string { return fmt.Sprintf("%8s", s) }

func ms(v float64) string { return fmt.Sprintf("%.0f", v) }
