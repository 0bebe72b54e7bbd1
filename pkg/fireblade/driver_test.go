package fireblade

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fireblade-network/fireblade/internal/testutil"
	"github.com/fireblade-network/fireblade/pkg/fireblade/change"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/gate"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/metrics"
)

type panicTask struct{}

func (panicTask) Name() string     { return "panic" }
func (panicTask) NeedsFacts() bool { return false }
func (panicTask) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	panic("nil map write")
}

type countingTask struct{ runs int }

func (t *countingTask) Name() string     { return "count" }
func (t *countingTask) NeedsFacts() bool { return false }
func (t *countingTask) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	t.runs++
	return outcome.NewCommandOutput(s.Host, "")
}

func newDriver(ft *testutil.FakeTransport, task Task) (*Driver, *testutil.FakeDialer) {
	dialer := testutil.NewFakeDialer()
	dialer.Transports[ft.Host] = ft
	return &Driver{Dialer: dialer, Task: task}, dialer
}

func TestDriveGate(t *testing.T) {
	tests := []struct {
		name      string
		filter    gate.Filter
		want      outcome.Category
		reason    string
		wantRun   bool
		wantFacts bool
	}{
		{"no filter", gate.Filter{}, outcome.CommandOutput, "", true, false},
		{"wildcards", gate.Filter{Campus: "any", Role: "any", Model: "any"}, outcome.CommandOutput, "", true, false},
		{"matching", gate.Filter{Campus: "bby", Role: "ext"}, outcome.CommandOutput, "", true, true},
		{"role mismatch", gate.Filter{Role: "core"}, outcome.Skipped, "role", false, true},
		{"model mismatch", gate.Filter{Model: device.ModelEX4300MP}, outcome.Skipped, "model", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := testutil.NewFakeTransport("bby-brh7046-ext-1")
			ft.FactsValue = device.Facts{Hostname: ft.Host, Model: device.ModelEX4300P, Campus: "bby", Role: "ext"}
			task := &countingTask{}
			d, _ := newDriver(ft, task)
			d.Filter = tt.filter

			o := d.Drive(context.Background(), ft.Host)

			if o.Category != tt.want {
				t.Errorf("category = %s, want %s (%s)", o.Category, tt.want, o.Detail)
			}
			if tt.reason != "" && !strings.HasPrefix(o.Detail, tt.reason) {
				t.Errorf("detail = %q, want prefix %q", o.Detail, tt.reason)
			}
			if (task.runs == 1) != tt.wantRun {
				t.Errorf("task runs = %d, want run %v", task.runs, tt.wantRun)
			}
			if ft.Called("facts") != tt.wantFacts {
				t.Errorf("facts fetched = %v, want %v", ft.Called("facts"), tt.wantFacts)
			}
			if ft.CloseCount() != 1 {
				t.Errorf("session closed %d times, want 1", ft.CloseCount())
			}
		})
	}
}

func TestDriveOpenFailures(t *testing.T) {
	tests := []struct {
		err  error
		want outcome.Category
	}{
		{errors.New("ssh: handshake failed: ssh: unable to authenticate"), outcome.AuthFailed},
		{errors.New("dial tcp 10.0.0.1:830: connect: connection refused"), outcome.Refused},
		{errors.New("dial tcp 10.0.0.1:830: i/o timeout"), outcome.TimedOut},
		{errors.New("dial tcp: lookup nosuchhost: no such host"), outcome.ConnectFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			dialer := testutil.NewFakeDialer()
			dialer.Errs["a"] = tt.err
			task := &countingTask{}
			d := &Driver{Dialer: dialer, Task: task}

			o := d.Drive(context.Background(), "a")
			if o.Category != tt.want {
				t.Errorf("category = %s, want %s", o.Category, tt.want)
			}
			if task.runs != 0 {
				t.Error("task must not run when open fails")
			}
			if !strings.Contains(o.Detail, tt.err.Error()) {
				t.Errorf("detail %q should carry the raw error", o.Detail)
			}
		})
	}
}

func TestDriveFactsFailure(t *testing.T) {
	ft := testutil.NewFakeTransport("a")
	ft.FactsErr = errors.New("rpc reply missing software-information")
	d, _ := newDriver(ft, &ProbeTask{})

	o := d.Drive(context.Background(), "a")
	if o.Category != outcome.ProtocolError {
		t.Errorf("category = %s, want %s", o.Category, outcome.ProtocolError)
	}
	if ft.CloseCount() != 1 {
		t.Errorf("session closed %d times, want 1", ft.CloseCount())
	}
}

func TestDrivePanicClosesSession(t *testing.T) {
	ft := testutil.NewFakeTransport("a")
	m := metrics.New()
	d, _ := newDriver(ft, panicTask{})
	d.Metrics = m

	o := d.Drive(context.Background(), "a")

	if o.Category != outcome.ProtocolError {
		t.Errorf("category = %s, want %s", o.Category, outcome.ProtocolError)
	}
	if !strings.Contains(o.Detail, "nil map write") {
		t.Errorf("detail %q should carry the panic value", o.Detail)
	}
	if ft.CloseCount() != 1 {
		t.Errorf("session closed %d times, want 1", ft.CloseCount())
	}
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() != "fireblade_open_sessions" {
			continue
		}
		found = true
		if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 0 {
			t.Errorf("open sessions = %v after drive, want 0", v)
		}
	}
	if !found {
		t.Error("open sessions gauge not exported")
	}
}

func TestDriveDryRunKeepsActive(t *testing.T) {
	active := []string{"set interfaces ge-0/0/1 unit 0 family ethernet-switching vlan members 10"}
	ft := testutil.NewFakeTransport("a", active...)
	d, _ := newDriver(ft, &ChangeTask{ChangeSet: change.ChangeSet{
		Directives: []string{
			"delete interfaces ge-0/0/1 unit 0 family ethernet-switching vlan members 10",
			"set interfaces ge-0/0/1 unit 0 family ethernet-switching vlan members 20",
		},
		Mode: change.DryRun,
	}})

	o := d.Drive(context.Background(), "a")

	if o.Category != outcome.RolledBack {
		t.Fatalf("category = %s, want %s", o.Category, outcome.RolledBack)
	}
	if got := ft.Active(); len(got) != 1 || got[0] != active[0] {
		t.Errorf("active config changed: %v", got)
	}
	if ft.Locked() {
		t.Error("configuration lock still held")
	}
	if o.Duration <= 0 {
		t.Error("outcome should carry a duration")
	}
}

func TestDriveCheckFailureRollsBack(t *testing.T) {
	ft := testutil.NewFakeTransport("a", "set x old")
	ft.CheckErr = device.NewError(device.KindCheck, "a", "commit-check", errors.New("missing mandatory statement"))
	d, _ := newDriver(ft, &ChangeTask{ChangeSet: change.ChangeSet{
		Directives: []string{"delete x", "set y new"},
		Mode:       change.CommitNow,
	}})

	o := d.Drive(context.Background(), "a")

	if o.Category != outcome.CommitCheckFailed {
		t.Errorf("category = %s, want %s", o.Category, outcome.CommitCheckFailed)
	}
	if ft.Rollbacks() != 1 {
		t.Errorf("rollbacks = %d, want 1", ft.Rollbacks())
	}
	if len(ft.Commits()) != 0 {
		t.Error("nothing should be committed after a failed check")
	}
}
