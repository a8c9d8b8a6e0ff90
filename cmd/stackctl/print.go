// File: cmd/stackctl/print.go
// Brief: Result summary rendering.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/stackctl/internal/stack"
	"github.com/example/stackctl/internal/verify"
)

func printStackResults(w io.Writer, results []stack.Result) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STACK\tSTATUS\tELAPSED\tDETAIL")
	for _, res := range results {
		detail := res.Reason
		if res.NoChange {
			detail = "no changes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Stack, colorStatus(res.Status), res.Elapsed.Truncate(time.Second), detail)
	}
	tw.Flush()
}

func colorStatus(s stack.Status) string {
	switch s {
	case stack.StatusComplete:
		return color.GreenString(string(s))
	case stack.StatusFailed, stack.StatusRolledBack:
		return color.RedString(string(s))
	case stack.StatusNotFound:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func printReport(w io.Writer, report *verify.Report) {
	for _, res := range report.Results {
		var mark string
		switch res.Outcome {
		case verify.Pass:
			mark = color.GreenString("PASS")
		case verify.Warn:
			mark = color.YellowString("WARN")
		case verify.Fail:
			mark = color.RedString("FAIL")
		}
		fmt.Fprintf(w, "%s  %-14s %s\n", mark, res.Probe, res.Detail)
	}
	if report.OK {
		if warns := report.Warnings(); len(warns) > 0 {
			fmt.Fprintln(w, color.YellowString("Verification passed with %d warning(s).", len(warns)))
		} else {
			fmt.Fprintln(w, color.GreenString("Verification passed."))
		}
	} else {
		fmt.Fprintln(w, color.RedString("Verification failed."))
	}
}
