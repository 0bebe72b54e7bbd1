package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/audit"
	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the outcome audit trail",
	Long: `Query the audit trail. Each device of each run is one event carrying
the run ID, user, operation, outcome category, and any diff or command
output. Rotated audit files are searched too.

Examples:
  fireblade audit list --device bby-core-1
  fireblade audit list --last 24h --failures
  fireblade audit list --run 20261019-153000 --json
  fireblade audit show bby-core-1 --op config`,
}

var auditQuery struct {
	device, user, run, operation, category, last string
	limit, offset                                 int
	failures, json                                bool
	showCount                                     int
}

// auditFilter turns the list flags into a query.
func auditFilter() (audit.Filter, error) {
	q := auditQuery
	f := audit.Filter{
		Device:      q.device,
		User:        q.user,
		RunID:       q.run,
		Operation:   q.operation,
		Category:    outcome.Category(q.category),
		Limit:       q.limit,
		Offset:      q.offset,
		FailureOnly: q.failures,
	}
	if q.last != "" {
		d, err := time.ParseDuration(q.last)
		if err != nil || d <= 0 {
			return f, fmt.Errorf("--last wants a positive duration such as 24h, got %q", q.last)
		}
		f.StartTime = time.Now().Add(-d)
	}
	return f, nil
}

func auditStatus(e *audit.Event) string {
	switch {
	case !e.Success:
		return red(string(e.Category))
	case e.Category == outcome.RolledBack && !e.Execute:
		return yellow("dry-run")
	case e.Pending:
		return yellow(string(e.Category) + " (confirm)")
	}
	return green(string(e.Category))
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := auditFilter()
		if err != nil {
			return err
		}
		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}
		if auditQuery.json {
			return json.NewEncoder(os.Stdout).Encode(events)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIME", "RUN", "USER", "DEVICE", "OPERATION", "OUTCOME", "DETAIL")
		for _, e := range events {
			t.Row(e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.RunID, e.User, e.Device,
				e.Operation, auditStatus(e), cli.Truncate(e.Detail, 60))
		}
		t.Flush()
		return nil
	},
}

var auditShowCmd = &cobra.Command{
	Use:   "show <device>",
	Short: "Print the diff and output recorded for a device's most recent events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := audit.Query(audit.Filter{Device: args[0], Operation: auditQuery.operation, RunID: auditQuery.run})
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}
		if len(events) == 0 {
			return fmt.Errorf("no audit events for %s", args[0])
		}
		n := auditQuery.showCount
		if n <= 0 || n > len(events) {
			n = len(events)
		}
		for _, e := range events[len(events)-n:] {
			fmt.Printf("%s %s %s by %s: %s\n", cli.Bold(e.Device), e.Timestamp.Local().Format(time.RFC3339),
				e.Operation, e.User, auditStatus(e))
			if e.Detail != "" {
				fmt.Println("  " + e.Detail)
			}
			for _, payload := range []string{e.Diff, e.Output} {
				if payload != "" {
					fmt.Println(payload)
				}
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	lf := auditListCmd.Flags()
	lf.StringVar(&auditQuery.device, "device", "", "Only this device")
	lf.StringVar(&auditQuery.user, "user", "", "Only this user")
	lf.StringVar(&auditQuery.category, "category", "", "Only this outcome category")
	lf.StringVar(&auditQuery.last, "last", "", "Only events newer than this duration (e.g. 24h)")
	lf.IntVar(&auditQuery.offset, "offset", 0, "Skip this many matching events")
	lf.BoolVar(&auditQuery.failures, "failures", false, "Only failed devices")
	lf.BoolVar(&auditQuery.json, "json", false, "JSON output")

	for _, c := range []*cobra.Command{auditListCmd, auditShowCmd} {
		c.Flags().StringVar(&auditQuery.run, "run", "", "Only this run ID")
		c.Flags().StringVar(&auditQuery.operation, "op", "", "Only this operation")
	}
	auditListCmd.Flags().IntVar(&auditQuery.limit, "limit", 100, "Maximum events to show")
	auditShowCmd.Flags().IntVar(&auditQuery.showCount, "last-n", 1, "How many recent events to print")

	auditCmd.AddCommand(auditListCmd, auditShowCmd)
}
