package fireblade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/change"
	"github.com/fireblade-network/fireblade/pkg/fireblade/command"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Task is the per-device work the Driver dispatches after the gate check.
// Run must return an Outcome for s.Host; it may fail by panicking, which
// the Driver reports as a protocol error.
type Task interface {
	Name() string
	// NeedsFacts makes the Driver fetch facts before Run, so a facts
	// failure is reported before any work starts.
	NeedsFacts() bool
	Run(ctx context.Context, s *device.Session) outcome.Outcome
}

// ShowTask runs read-only commands and returns their text.
type ShowTask struct {
	Commands []string
	Timeout  time.Duration
}

func (t *ShowTask) Name() string     { return "show" }
func (t *ShowTask) NeedsFacts() bool { return false }

func (t *ShowTask) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	e := &command.Executor{Host: s.Host, Timeout: t.Timeout}
	return e.Execute(ctx, s, t.Commands)
}

// ChangeTask applies a ChangeSet. When PerHost is set, each device gets
// its own directive list (VLAN flips); the ChangeSet supplies the mode.
type ChangeTask struct {
	Operation string
	ChangeSet change.ChangeSet
	PerHost   map[string][]string

	CheckTimeout  time.Duration
	CommitTimeout time.Duration
	AtTimeout     time.Duration
}

func (t *ChangeTask) Name() string {
	if t.Operation != "" {
		return t.Operation
	}
	return "config"
}

func (t *ChangeTask) NeedsFacts() bool { return false }

func (t *ChangeTask) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	cs := t.ChangeSet
	if t.PerHost != nil {
		directives, ok := t.PerHost[s.Host]
		if !ok {
			return outcome.NewSkipped(s.Host, "no changes listed for device")
		}
		cs.Directives = directives
	}

	e := &change.Executor{
		Host:          s.Host,
		CheckTimeout:  t.CheckTimeout,
		CommitTimeout: t.CommitTimeout,
		AtTimeout:     t.AtTimeout,
	}
	res := e.Apply(ctx, s, cs)
	if change.IsOpenCandidate(res.State) {
		util.WithDevice(s.Host).Errorf("candidate configuration may still be loaded (state %s); clear it manually", res.State)
	}
	return res.Outcome
}

// ProbeTask reports what the inventory classifier knows about a device.
type ProbeTask struct{}

func (t *ProbeTask) Name() string     { return "probe" }
func (t *ProbeTask) NeedsFacts() bool { return true }

func (t *ProbeTask) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	facts, err := s.Facts(ctx)
	if err != nil {
		return outcome.FromError(s.Host, err)
	}
	return outcome.NewCommandOutput(s.Host, ProbeLine(facts))
}

// ProbeLine formats facts as "hostname,model,role,campus,members" where
// members are "id:model" pairs separated by spaces.
func ProbeLine(f device.Facts) string {
	members := make([]string, 0, len(f.Members))
	for _, m := range f.Members {
		members = append(members, fmt.Sprintf("%s:%s", m.ID, m.Model))
	}
	return strings.Join([]string{
		orUnknown(f.Hostname),
		orUnknown(f.Model),
		orUnknown(f.Role),
		orUnknown(f.Campus),
		strings.Join(members, " "),
	}, ",")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
