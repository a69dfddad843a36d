// Package format renders run results for people: one summary line per run
// and one block per failed patch.
package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"mache/internal/ledger"
	"mache/internal/patcher"
	"mache/internal/rebuild"
)

// ApplySummary prints counts and every failure of an apply run.
func ApplySummary(w io.Writer, res patcher.Result) {
	patched, unmodified, failed := res.Counts()
	status := Green + "ok" + Reset
	if failed > 0 {
		status = Red + "FAILED" + Reset
	}
	fmt.Fprintf(w, "%sapply%s %s: %d patched, %d unmodified, %d failed\n", Bold, Reset, status, patched, unmodified, failed)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s✗%s %s\n", Red, Reset, f.Patch)
		for _, line := range strings.Split(strings.TrimRight(f.Detail, "\n"), "\n") {
			fmt.Fprintf(w, "      %s%s%s\n", Dim, line, Reset)
		}
	}
}

// RebuildSummary prints what a rebuild wrote, removed and skipped.
func RebuildSummary(w io.Writer, st rebuild.Stats) {
	fmt.Fprintf(w, "%srebuild%s %sok%s: %d written, %d unchanged, %d removed\n",
		Bold, Reset, Green, Reset, st.Written, st.Unchanged, st.Removed)
	for _, p := range st.SkippedAdded {
		fmt.Fprintf(w, "  %s+%s %s %s(new file, no patch)%s\n", Yellow, Reset, p, Dim, Reset)
	}
	for _, p := range st.SkippedRemoved {
		fmt.Fprintf(w, "  %s-%s %s %s(deleted file, no patch)%s\n", Yellow, Reset, p, Dim, Reset)
	}
}

// History prints recorded runs, newest first.
func History(w io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s#%d%s %s %s%-7s%s ", Cyan, r.ID, Reset, r.Started.Local().Format(time.DateTime), Bold, r.Command, Reset)
		switch r.Command {
		case "rebuild":
			fmt.Fprintf(w, "%d written, %d removed", r.Written, r.Removed)
		default:
			fmt.Fprintf(w, "%d patched, %d unmodified, %d failed", r.Patched, r.Unmodified, r.Failed())
		}
		if r.ExitCode != 0 {
			fmt.Fprintf(w, " %s(exit %d)%s", Red, r.ExitCode, Reset)
		}
		fmt.Fprintln(w)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "    %s✗%s %s\n", Red, Reset, f.Patch)
		}
	}
}
