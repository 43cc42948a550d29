package usecase

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

func WriteResyncReport(w io.Writer, report domain.ResyncReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tLOCAL\tLIVE\tSYNCED\tSKIPPED\tERRORED\tSTATUS")
	for _, t := range report.Tallies {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n", t.Type, t.LocalCount, t.LiveCount, t.Synced, t.Skipped, t.Errored, tallyStatus(t))
	}
	total := report.Totals()
	status := "ok"
	if report.Failed() {
		status = "incomplete"
	}
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n", total.Type, total.LocalCount, total.LiveCount, total.Synced, total.Skipped, total.Errored, status)
	return tw.Flush()
}

func WriteDriftReport(w io.Writer, report domain.DriftReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tLOCAL\tLIVE\tSTATUS")
	for _, e := range report.Entries {
		status := "match"
		switch {
		case e.Err != "":
			status = "MISMATCH (" + e.Err + ")"
		case !e.Match:
			status = "MISMATCH"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", e.Type, e.Local, e.Live, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	mismatches := len(report.Mismatches())
	if mismatches == 0 {
		_, err := fmt.Fprintf(w, "\nall %d types in sync\n", len(report.Entries))
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d types out of sync, run resync\n", mismatches, len(report.Entries))
	return err
}

func tallyStatus(t domain.SyncTally) string {
	switch {
	case t.Err != "":
		return "error: " + t.Err
	case t.LocalCount != t.LiveCount:
		return "count mismatch"
	case t.Errored > 0:
		return "errors"
	default:
		return "ok"
	}
}
