package fireblade

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fireblade-network/fireblade/internal/testutil"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/metrics"
	"github.com/fireblade-network/fireblade/pkg/util"
)

func TestRunnerRun(t *testing.T) {
	dir := t.TempDir()
	dialer := testutil.NewFakeDialer()
	dialer.New = func(host string) *testutil.FakeTransport {
		ft := testutil.NewFakeTransport(host)
		ft.CommandOutputs = map[string]string{
			"show version": testutil.Framed("show version", "Hostname: "+host),
		}
		return ft
	}
	dialer.Errs["bby-core-3"] = errors.New("ssh: unable to authenticate, attempted methods [none password]")

	req := &RunRequest{
		Operation:   OpShow,
		Devices:     []string{"bby-core-1", "bby-core-2", "bby-core-3"},
		Commands:    []string{"show version"},
		Concurrency: 2,
		LogDir:      filepath.Join(dir, "logs"),
		SummaryFile: filepath.Join(dir, "summary.csv"),
	}
	if err := req.Resolve(); err != nil {
		t.Fatal(err)
	}

	var collected []outcome.Outcome
	r := &Runner{
		Dialer:      dialer,
		Credentials: StaticCredentials{Username: "netops", Password: "pw"},
		Sinks: []Sink{SinkFunc(func(o outcome.Outcome) error {
			collected = append(collected, o)
			return nil
		})},
		Metrics: metrics.New(),
	}

	report, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Total() != 3 || len(collected) != 3 {
		t.Fatalf("Total() = %d, collected %d, want 3", report.Total(), len(collected))
	}
	if report.Count(outcome.CommandOutput) != 2 || report.Count(outcome.AuthFailed) != 1 {
		t.Errorf("counts: output=%d auth=%d", report.Count(outcome.CommandOutput), report.Count(outcome.AuthFailed))
	}
	for _, o := range report.ByCategory(outcome.CommandOutput) {
		if o.Output != "Hostname: "+o.Device {
			t.Errorf("%s output = %q", o.Device, o.Output)
		}
	}

	if _, err := os.Stat(req.SummaryFile); err != nil {
		t.Errorf("summary file not written: %v", err)
	}
	logs, _ := filepath.Glob(filepath.Join(req.LogDir, "bby-core-*-show-*.log"))
	if len(logs) != 3 {
		t.Errorf("device logs = %d, want 3", len(logs))
	}
}

func TestRunnerNoCredentials(t *testing.T) {
	dialer := testutil.NewFakeDialer()
	req := &RunRequest{Operation: OpProbe, Devices: []string{"a"}}
	req.ApplyDefaults()

	r := &Runner{Dialer: dialer, Credentials: StaticCredentials{}}
	if _, err := r.Run(context.Background(), req); !errors.Is(err, util.ErrNoCredentials) {
		t.Errorf("Run() error = %v, want ErrNoCredentials", err)
	}
	if dialer.Dials() != 0 {
		t.Error("no device should be dialed without credentials")
	}
}

func TestProbeLine(t *testing.T) {
	f := device.Facts{
		Hostname: "bby-brh7046-ext-1",
		Model:    device.ModelMixed,
		Role:     "ext",
		Campus:   "bby",
		Members: []device.Member{
			{ID: "0", Model: device.ModelEX4300P},
			{ID: "1", Model: device.ModelEX4300MP},
		},
	}
	want := "bby-brh7046-ext-1,mixed,ext,bby,0:EX4300-48P 1:EX4300-48MP"
	if got := ProbeLine(f); got != want {
		t.Errorf("ProbeLine() = %q, want %q", got, want)
	}
	if got := ProbeLine(device.Facts{}); got != "unknown,unknown,unknown,unknown," {
		t.Errorf("ProbeLine(empty) = %q", got)
	}
}
