package fireblade

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fireblade-network/fireblade/pkg/fireblade/change"
	"github.com/fireblade-network/fireblade/pkg/fireblade/command"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/gate"
	"github.com/fireblade-network/fireblade/pkg/fireblade/install"
	"github.com/fireblade-network/fireblade/pkg/fireblade/snapshot"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Operation names what a run does on each device.
type Operation string

const (
	OpShow     Operation = "show"
	OpConfig   Operation = "config"
	OpVLANFlip Operation = "vlan-flip"
	OpInstall  Operation = "install"
	OpSnapshot Operation = "snapshot"
	OpProbe    Operation = "probe"
)

// Operations lists every operation.
var Operations = []Operation{OpShow, OpConfig, OpVLANFlip, OpInstall, OpSnapshot, OpProbe}

// Default timeouts.
const (
	DefaultOpenTimeout    = 30 * time.Second
	DefaultCommandTimeout = command.DefaultTimeout
	DefaultCheckTimeout   = change.DefaultCheckTimeout
	DefaultCommitTimeout  = change.DefaultCommitTimeout
	DefaultLongTimeout    = 1200 * time.Second
)

// Timeouts bound each blocking step. Zero means the default.
type Timeouts struct {
	Open    time.Duration `yaml:"open,omitempty"`
	Command time.Duration `yaml:"command,omitempty"`
	Check   time.Duration `yaml:"check,omitempty"`
	Commit  time.Duration `yaml:"commit,omitempty"`
	// Long covers firmware install, snapshot writes and scheduled commits.
	Long time.Duration `yaml:"long,omitempty"`
}

// RunRequest describes one run. The CLI builds it from flags; "fireblade
// run" loads it from YAML.
type RunRequest struct {
	Operation  Operation   `yaml:"operation"`
	Devices    []string    `yaml:"devices,omitempty"`
	DeviceFile string      `yaml:"device_file,omitempty"`
	Filter     gate.Filter `yaml:"filter,omitempty"`

	Commands    []string `yaml:"commands,omitempty"`
	CommandFile string   `yaml:"command_file,omitempty"`

	Directives     []string    `yaml:"directives,omitempty"`
	DirectiveFile  string      `yaml:"directive_file,omitempty"`
	MatrixFile     string      `yaml:"matrix_file,omitempty"`
	Mode           change.Mode `yaml:"mode,omitempty"`
	ConfirmMinutes int         `yaml:"confirm_minutes,omitempty"`
	At             string      `yaml:"at,omitempty"`

	Packages      install.Packages `yaml:"packages,omitempty"`
	InstallAction string           `yaml:"install_action,omitempty"`

	Username    string   `yaml:"username,omitempty"`
	Port        int      `yaml:"port,omitempty"`
	Concurrency int      `yaml:"concurrency,omitempty"`
	Timeouts    Timeouts `yaml:"timeouts,omitempty"`

	LogDir      string `yaml:"log_dir,omitempty"`
	SummaryFile string `yaml:"summary_file,omitempty"`

	matrix *change.Matrix
}

// LoadRequest reads a YAML run request. Unknown keys are rejected.
func LoadRequest(path string) (*RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run request: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var req RunRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("parsing run request %s: %w", path, err)
	}
	return &req, nil
}

// Resolve reads the list files the request names, applies defaults and
// validates the result.
func (r *RunRequest) Resolve() error {
	if r.DeviceFile != "" {
		hosts, err := util.ReadListFile(r.DeviceFile)
		if err != nil {
			return err
		}
		r.Devices = append(r.Devices, hosts...)
	}
	if r.CommandFile != "" {
		cmds, err := util.ReadListFile(r.CommandFile)
		if err != nil {
			return err
		}
		r.Commands = append(r.Commands, cmds...)
	}
	if r.DirectiveFile != "" {
		dirs, err := util.ReadListFile(r.DirectiveFile)
		if err != nil {
			return err
		}
		r.Directives = append(r.Directives, dirs...)
	}
	if r.MatrixFile != "" {
		m, err := change.ParseMatrixFile(r.MatrixFile)
		if err != nil {
			return err
		}
		r.matrix = m
		if len(r.Devices) == 0 {
			r.Devices = append(r.Devices, m.Hosts...)
		}
	}

	r.Devices = dedupe(r.Devices)
	r.ApplyDefaults()
	return r.Validate()
}

// ApplyDefaults fills zero values.
func (r *RunRequest) ApplyDefaults() {
	if r.Mode == "" {
		r.Mode = change.DryRun
	}
	if r.Port == 0 {
		r.Port = device.DefaultPort
	}
	if r.Concurrency == 0 {
		r.Concurrency = DefaultConcurrency
	}
	if r.Operation == OpInstall && r.InstallAction == "" {
		r.InstallAction = install.ActionRollback
	}
	t := &r.Timeouts
	if t.Open == 0 {
		t.Open = DefaultOpenTimeout
	}
	if t.Command == 0 {
		t.Command = DefaultCommandTimeout
	}
	if t.Check == 0 {
		t.Check = DefaultCheckTimeout
	}
	if t.Commit == 0 {
		t.Commit = DefaultCommitTimeout
	}
	if t.Long == 0 {
		t.Long = DefaultLongTimeout
	}
}

// ChangeSet returns the request's change set for config runs.
func (r *RunRequest) ChangeSet() change.ChangeSet {
	return change.ChangeSet{
		Directives:     r.Directives,
		Mode:           r.Mode,
		ConfirmMinutes: r.ConfirmMinutes,
		At:             r.At,
	}
}

// Validate checks the request is complete and consistent.
func (r *RunRequest) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(len(r.Devices) > 0, "no devices given")
	v.Add(r.Concurrency >= 1, fmt.Sprintf("concurrency must be at least 1, got %d", r.Concurrency))
	if r.Port != 0 {
		v.Add(r.Port > 0 && r.Port < 65536, fmt.Sprintf("invalid port %d", r.Port))
	}

	switch r.Operation {
	case OpShow:
		v.Add(len(r.Commands) > 0, "show requires at least one command")
		v.Add(len(r.Directives) == 0, "show takes commands, not configuration directives")
	case OpConfig:
		v.Add(len(r.Directives) > 0, "config requires at least one directive")
		v.Add(len(r.Commands) == 0, "config takes configuration directives, not commands")
		v.Merge(r.ChangeSet().Validate())
	case OpVLANFlip:
		v.Add(r.MatrixFile != "" || r.matrix != nil, "vlan-flip requires a change matrix file")
		v.Add(len(r.Commands) == 0 && len(r.Directives) == 0, "vlan-flip takes its directives from the change matrix")
		cs := r.ChangeSet()
		cs.Directives = nil
		v.Merge(cs.Validate())
	case OpInstall:
		v.Merge(r.Packages.Validate())
		v.Merge(install.ValidateAction(r.InstallAction))
	case OpSnapshot, OpProbe:
		v.Add(len(r.Commands) == 0 && len(r.Directives) == 0, fmt.Sprintf("%s takes no commands or directives", r.Operation))
	default:
		v.AddErrorf("unknown operation %q", r.Operation)
	}
	return v.Build()
}

// Task builds the per-device task for the request. Resolve must have
// succeeded first.
func (r *RunRequest) Task() (Task, error) {
	switch r.Operation {
	case OpShow:
		return &ShowTask{Commands: r.Commands, Timeout: r.Timeouts.Command}, nil
	case OpConfig:
		return &ChangeTask{
			Operation:     string(OpConfig),
			ChangeSet:     r.ChangeSet(),
			CheckTimeout:  r.Timeouts.Check,
			CommitTimeout: r.Timeouts.Commit,
			AtTimeout:     r.Timeouts.Long,
		}, nil
	case OpVLANFlip:
		if r.matrix == nil {
			return nil, fmt.Errorf("%w: change matrix not loaded", util.ErrInvalidRequest)
		}
		return &ChangeTask{
			Operation:     string(OpVLANFlip),
			ChangeSet:     change.ChangeSet{Mode: r.Mode, ConfirmMinutes: r.ConfirmMinutes, At: r.At},
			PerHost:       r.matrix.Directives,
			CheckTimeout:  r.Timeouts.Check,
			CommitTimeout: r.Timeouts.Commit,
			AtTimeout:     r.Timeouts.Long,
		}, nil
	case OpInstall:
		return &install.Task{
			Packages: r.Packages,
			Action:   r.InstallAction,
			Timeout:  r.Timeouts.Long,
		}, nil
	case OpSnapshot:
		return &snapshot.Task{WriteTimeout: r.Timeouts.Long}, nil
	case OpProbe:
		return &ProbeTask{}, nil
	}
	return nil, fmt.Errorf("%w: unknown operation %q", util.ErrInvalidRequest, r.Operation)
}

func dedupe(hosts []string) []string {
	seen := make(map[string]bool, len(hosts))
	out := hosts[:0:0]
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
