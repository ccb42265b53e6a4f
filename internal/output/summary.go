package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"reposplit/internal/check"
	"reposplit/internal/partition"
)

// PrintSplitSummary writes the completion message of a split run, naming both
// output files.
func PrintSplitSummary(w io.Writer, sum partition.Summary) error {
	bold := color.New(color.Bold)
	if _, err := bold.Fprintf(w, "Split %d records from %s:\n", sum.Total, sum.Input); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  - %d matching records written to %s\n", sum.Matched, sum.MatchedPath); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  - %d other records written to %s\n", sum.Other, sum.OtherPath)
	return err
}

// PrintCheckSummary writes per-status totals of a check run in a fixed order.
func PrintCheckSummary(w io.Writer, partitionName string, sum check.Summary) error {
	bold := color.New(color.Bold)
	if _, err := bold.Fprintf(w, "Checked %d repositories in the %s partition:", sum.Total, partitionName); err != nil {
		return err
	}
	for _, st := range []check.Status{check.StatusActive, check.StatusArchived, check.StatusMissing, check.StatusInvalid, check.StatusError} {
		n := sum.Counts[st]
		if n == 0 {
			continue
		}
		label := string(st)
		if c, ok := statusColors[st]; ok {
			label = c.Sprint(label)
		}
		if _, err := fmt.Fprintf(w, " %s=%d", label, n); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
