package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/audit"
	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/fireblade"
	"github.com/fireblade-network/fireblade/pkg/fireblade/change"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device/junos"
	"github.com/fireblade-network/fireblade/pkg/fireblade/gate"
	"github.com/fireblade-network/fireblade/pkg/fireblade/inventory"
	"github.com/fireblade-network/fireblade/pkg/metrics"
	"github.com/fireblade-network/fireblade/pkg/publish"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Change mode flags, shared by config and vlan-flip.
var (
	executeMode    bool
	confirmMinutes int
	commitAt       string
	modeName       string
)

func addChangeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Commit changes (default is check and roll back)")
	cmd.Flags().IntVar(&confirmMinutes, "confirm", 0, "Commit confirmed: device rolls back after N minutes unless confirmed")
	cmd.Flags().StringVar(&commitAt, "at", "", `Schedule the commit at a device-local time ("2026-10-20 02:00")`)
	cmd.Flags().StringVar(&modeName, "mode", "", "Change mode: dry-run, commit, commit-confirmed, commit-at")
}

// changeMode resolves the mode flags. An explicit --mode wins.
func changeMode() (change.Mode, error) {
	switch {
	case modeName != "":
		return change.ParseMode(modeName)
	case commitAt != "":
		return change.CommitAt, nil
	case confirmMinutes > 0:
		return change.CommitConfirmed, nil
	case executeMode:
		return change.CommitNow, nil
	}
	return change.DryRun, nil
}

// newRequest builds a request from the global flags with settings as
// fallback.
func newRequest(op fireblade.Operation) *fireblade.RunRequest {
	req := &fireblade.RunRequest{
		Operation:   op,
		Devices:     append([]string(nil), deviceList...),
		DeviceFile:  deviceFile,
		Filter:      gate.Filter{Campus: campus, Role: role, Model: model},
		Username:    username,
		Port:        port,
		Concurrency: concurrency,
		LogDir:      logDir,
		SummaryFile: summaryFile,
	}
	applySettings(req)
	return req
}

func applySettings(req *fireblade.RunRequest) {
	if userSettings == nil {
		return
	}
	if req.Username == "" {
		req.Username = userSettings.Username
	}
	if req.Port == 0 {
		req.Port = userSettings.GetPort()
	}
	if req.Concurrency == 0 {
		req.Concurrency = userSettings.GetConcurrency()
	}
	if req.LogDir == "" && userSettings.LogDir != "" {
		req.LogDir = userSettings.LogDir
	}
}

// execute resolves req, runs it and prints the report. Device failures make
// it return errDeviceFailures.
func execute(req *fireblade.RunRequest) error {
	if err := req.Resolve(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runID := time.Now().Format("20060102-150405")
	op := string(req.Operation)
	m := metrics.New()
	util.WithRun(runID, op).Debugf("%d devices, concurrency %d", len(req.Devices), req.Concurrency)

	sinks := []fireblade.Sink{
		&fireblade.ConsoleSink{W: os.Stdout, Verbose: printPayload || req.Operation == fireblade.OpShow},
		&metrics.Sink{Metrics: m, Operation: op},
	}
	if auditLogger != nil {
		sinks = append(sinks, &audit.Sink{
			Logger:    auditLogger,
			User:      req.Username,
			Operation: op,
			RunID:     runID,
			Execute:   isExecute(req),
		})
	}
	if addr := userSettings.RedisAddr; addr != "" {
		rs := publish.NewRedisSink(addr, runID, op)
		if err := rs.Connect(); err != nil {
			util.WithRun(runID, op).Warnf("Outcomes will not be published: %v", err)
		} else {
			defer rs.Close()
			sinks = append(sinks, rs)
		}
	}

	runner := &fireblade.Runner{
		Dialer: &junos.Dialer{},
		Credentials: fireblade.ChainCredentials{
			fireblade.EnvCredentials{Username: req.Username},
			fireblade.PromptCredentials{Username: req.Username},
		},
		Classifier: inventory.NewClassifier(),
		Sinks:      sinks,
		Metrics:    m,
	}

	if req.Operation == fireblade.OpConfig || req.Operation == fireblade.OpVLANFlip {
		if req.Mode == change.DryRun {
			fmt.Println(yellow("DRY-RUN: changes are checked and rolled back. Use -x to commit."))
		}
	}

	report, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	report.Render(os.Stdout)

	if path := userSettings.MetricsFile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			util.Warnf("Could not write metrics: %v", err)
		}
	}

	if n := report.Failures(); n > 0 {
		fmt.Fprintf(os.Stderr, "\n%s\n", red(fmt.Sprintf("%d of %d devices failed", n, report.Total())))
		return errDeviceFailures
	}
	return nil
}

func isExecute(req *fireblade.RunRequest) bool {
	switch req.Operation {
	case fireblade.OpConfig, fireblade.OpVLANFlip:
		return req.Mode != change.DryRun
	case fireblade.OpInstall, fireblade.OpSnapshot:
		return true
	}
	return false
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
