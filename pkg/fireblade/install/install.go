// Package install upgrades Junos on EX4300 virtual chassis.
//
// The package is chosen by chassis model: EX4300-48P and EX4300-48MP each
// take their own image, a mixed chassis takes both. After a successful add
// the chassis is rebooted now, at a given hour, or the add is rolled back.
package install

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Post-install actions. Any other accepted value is a reboot hour.
const (
	ActionRollback = "rollback"
	ActionNow      = "now"
)

const (
	DefaultTimeout   = 1200 * time.Second
	DefaultRemoteDir = "/var/tmp"
	maxRebootOffset  = 20
)

var (
	rebootHour    = regexp.MustCompile(`^\d{8}$`) // yymmddhh
	packageResult = regexp.MustCompile(`<package-result>\s*(\d+)\s*</package-result>`)
)

// ValidateAction checks a post-install action.
func ValidateAction(action string) error {
	switch {
	case action == ActionRollback, action == ActionNow:
		return nil
	case rebootHour.MatchString(action):
		if _, err := time.Parse("06010215", action); err != nil {
			return fmt.Errorf("invalid reboot hour %q: %w", action, err)
		}
		return nil
	}
	return fmt.Errorf("invalid post-install action %q (want rollback, now or yymmddhh)", action)
}

// Packages are local image paths by chassis model.
type Packages struct {
	P  string `yaml:"p" json:"p"`   // EX4300-48P image
	MP string `yaml:"mp" json:"mp"` // EX4300-48MP image
}

// Validate checks that both images exist.
func (p Packages) Validate() error {
	v := &util.ValidationBuilder{}
	for model, file := range map[string]string{device.ModelEX4300P: p.P, device.ModelEX4300MP: p.MP} {
		if file == "" {
			v.AddErrorf("package for %s is required", model)
			continue
		}
		if st, err := os.Stat(file); err != nil || st.IsDir() {
			v.AddErrorf("package for %s: %s is not a file", model, file)
		}
	}
	return v.Build()
}

// Task installs Junos on one device.
type Task struct {
	Packages  Packages
	Action    string
	RemoteDir string
	Timeout   time.Duration
	// Offset returns the minute offset added to a reboot hour. Defaults to
	// a random 0-20.
	Offset func() int
}

func (t *Task) Name() string { return "install" }

// NeedsFacts is true: the image depends on the chassis model.
func (t *Task) NeedsFacts() bool { return true }

// Run installs the image(s) for the chassis and performs the post action.
func (t *Task) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	host := s.Host
	facts, err := s.Facts(ctx)
	if err != nil {
		return outcome.FromError(host, err)
	}

	var images []string
	switch facts.Model {
	case device.ModelEX4300P:
		images = []string{t.Packages.P}
	case device.ModelEX4300MP:
		images = []string{t.Packages.MP}
	case device.ModelMixed:
		images = []string{t.Packages.P, t.Packages.MP}
	default:
		return outcome.NewSkipped(host, fmt.Sprintf("JUNOS installation skipped due to hardware mismatch (chassis %s)", orUnknown(facts.Model)))
	}

	r := &report{}
	r.logf("chassis %s, installing %s", facts.Model, strings.Join(baseNames(images), ", "))

	var remote []string
	for _, img := range images {
		dst := path.Join(t.remoteDir(), filepath.Base(img))
		if err := s.Upload(ctx, img, dst); err != nil {
			return outcome.FromError(host, err).WithOutput(r.String())
		}
		r.logf("copied %s to %s", img, dst)
		remote = append(remote, dst)
	}

	reply, err := s.Call(ctx, packageAddRPC(remote), t.timeout())
	if err != nil {
		return outcome.FromError(host, err).WithOutput(r.String())
	}
	if m := packageResult.FindStringSubmatch(reply); m != nil && m[1] != "0" {
		r.logf("package add reported result %s", m[1])
		return outcome.NewProtocolError(host, "JUNOS installation failed").WithOutput(r.String() + reply)
	}
	r.logf("JUNOS installation completed")

	rpc, note := t.postAction()
	ack, err := s.Call(ctx, rpc, t.timeout())
	if err != nil {
		return outcome.FromError(host, err).WithOutput(r.String())
	}
	r.logf("post installation action: %s", note)
	if ack = strings.TrimSpace(ack); ack != "" && ack != "<ok/>" {
		r.lines = append(r.lines, ack)
	}

	o := outcome.NewCommandOutput(host, r.String())
	o.Detail = "JUNOS installation completed; " + note
	return o
}

func (t *Task) remoteDir() string {
	if t.RemoteDir != "" {
		return t.RemoteDir
	}
	return DefaultRemoteDir
}

func (t *Task) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultTimeout
}

// postAction returns the RPC for the configured action and a description.
func (t *Task) postAction() (string, string) {
	switch t.Action {
	case "", ActionRollback:
		return `<request-package-rollback/>`, "package rolled back"
	case ActionNow:
		return `<request-reboot/>`, "rebooting now"
	}
	offset := rand.Intn(maxRebootOffset + 1)
	if t.Offset != nil {
		offset = t.Offset()
	}
	at := fmt.Sprintf("%s%02d", t.Action, offset)
	return `<request-reboot><at>` + at + `</at></request-reboot>`, "reboot scheduled at " + at
}

// packageAddRPC adds one package, or a package set on a mixed chassis.
func packageAddRPC(remote []string) string {
	var sb strings.Builder
	sb.WriteString(`<request-package-add><no-validate/>`)
	if len(remote) == 1 {
		sb.WriteString(`<package-name>` + remote[0] + `</package-name>`)
	} else {
		for _, p := range remote {
			sb.WriteString(`<set>` + p + `</set>`)
		}
	}
	sb.WriteString(`</request-package-add>`)
	return sb.String()
}

type report struct {
	lines []string
}

func (r *report) logf(format string, args ...interface{}) {
	r.lines = append(r.lines, time.Now().Format("2006-01-02 15:04")+" "+fmt.Sprintf(format, args...))
}

func (r *report) String() string {
	if len(r.lines) == 0 {
		return ""
	}
	return strings.Join(r.lines, "\n") + "\n"
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
