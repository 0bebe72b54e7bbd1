// Package outcome defines the result of one device's session lifecycle.
//
// An Outcome is the only thing a per-device task hands back to the fleet
// orchestrator. Exactly one Category applies per device per run.
package outcome

import (
	"errors"
	"fmt"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
)

// Category tags an Outcome.
type Category string

const (
	Skipped           Category = "skipped"
	ConnectFailed     Category = "connect-failed"
	AuthFailed        Category = "auth-failed"
	TimedOut          Category = "timed-out"
	Refused           Category = "refused"
	ProtocolError     Category = "protocol-error"
	NoDifference      Category = "no-difference"
	Committed         Category = "committed"
	RolledBack        Category = "rolled-back"
	CommitCheckFailed Category = "commit-check-failed"
	ScheduledCommit   Category = "scheduled-commit"
	CommandOutput     Category = "command-output"
)

// Categories lists every category in report order.
var Categories = []Category{
	Committed,
	ScheduledCommit,
	RolledBack,
	NoDifference,
	CommandOutput,
	Skipped,
	CommitCheckFailed,
	ProtocolError,
	ConnectFailed,
	AuthFailed,
	TimedOut,
	Refused,
}

// IsFailure reports whether c means the device was not handled as requested.
func (c Category) IsFailure() bool {
	switch c {
	case ConnectFailed, AuthFailed, TimedOut, Refused, ProtocolError, CommitCheckFailed:
		return true
	}
	return false
}

// Outcome is the immutable result for one device.
type Outcome struct {
	Device   string        `json:"device"`
	Category Category      `json:"category"`
	Detail   string        `json:"detail,omitempty"` // human-readable reason or error
	Diff     string        `json:"diff,omitempty"`
	Output   string        `json:"output,omitempty"` // command text or device acknowledgement
	Pending  bool          `json:"pending,omitempty"` // commit confirmed, device-side timer running
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
}

// Payload returns the audit payload: diff, then output.
func (o Outcome) Payload() string {
	switch {
	case o.Diff != "" && o.Output != "":
		return o.Diff + "\n" + o.Output
	case o.Diff != "":
		return o.Diff
	}
	return o.Output
}

func (o Outcome) String() string {
	if o.Detail == "" {
		return fmt.Sprintf("%s: %s", o.Device, o.Category)
	}
	return fmt.Sprintf("%s: %s (%s)", o.Device, o.Category, o.Detail)
}

func newOutcome(host string, c Category) Outcome {
	return Outcome{Device: host, Category: c, At: time.Now()}
}

// NewSkipped reports a device that failed the gate check.
func NewSkipped(host, reason string) Outcome {
	o := newOutcome(host, Skipped)
	o.Detail = reason
	return o
}

// NewNoDifference reports a change set that produced an empty diff.
func NewNoDifference(host string) Outcome {
	o := newOutcome(host, NoDifference)
	o.Detail = "no differences found"
	return o
}

// NewCommitted reports an activated change.
func NewCommitted(host, diff, ack string) Outcome {
	o := newOutcome(host, Committed)
	o.Diff = diff
	o.Output = ack
	o.Detail = "changes committed"
	return o
}

// NewConfirmPending reports a commit confirmed whose confirmation window is
// still open on the device. The final state is not observable from here.
func NewConfirmPending(host, diff, ack string, minutes int) Outcome {
	o := NewCommitted(host, diff, ack)
	o.Pending = true
	o.Detail = fmt.Sprintf("changes committed; device rolls back in %d minutes unless confirmed", minutes)
	return o
}

// NewScheduled reports a scheduled commit acknowledgement.
func NewScheduled(host, diff, ack, at string) Outcome {
	o := newOutcome(host, ScheduledCommit)
	o.Diff = diff
	o.Output = ack
	o.Detail = "commit scheduled at " + at
	return o
}

// NewRolledBack reports a candidate that was deliberately discarded.
func NewRolledBack(host, diff string) Outcome {
	o := newOutcome(host, RolledBack)
	o.Diff = diff
	o.Detail = "changes checked and rolled back"
	return o
}

// NewCommitCheckFailed reports a candidate the device rejected.
func NewCommitCheckFailed(host, diff, detail string) Outcome {
	o := newOutcome(host, CommitCheckFailed)
	o.Diff = diff
	o.Detail = detail
	return o
}

// NewCommandOutput reports collected command text.
func NewCommandOutput(host, text string) Outcome {
	o := newOutcome(host, CommandOutput)
	o.Output = text
	return o
}

// NewProtocolError reports a failed remote procedure or an unexpected fault.
func NewProtocolError(host, detail string) Outcome {
	o := newOutcome(host, ProtocolError)
	o.Detail = detail
	return o
}

// FromError maps any error raised inside a per-device task to an Outcome.
// It is the one place transport failures become categories.
func FromError(host string, err error) Outcome {
	if err == nil {
		return NewProtocolError(host, "unknown failure")
	}

	var c Category
	switch device.KindOf(err) {
	case device.KindConnect:
		c = ConnectFailed
	case device.KindAuth:
		c = AuthFailed
	case device.KindTimeout:
		c = TimedOut
	case device.KindRefused:
		c = Refused
	case device.KindCheck:
		c = CommitCheckFailed
	default:
		c = ProtocolError
	}

	o := newOutcome(host, c)
	o.Detail = err.Error()
	return o
}

// WithDiff returns a copy of o carrying diff.
func (o Outcome) WithDiff(diff string) Outcome {
	o.Diff = diff
	return o
}

// WithOutput returns a copy of o carrying output.
func (o Outcome) WithOutput(text string) Outcome {
	o.Output = text
	return o
}

// AppendDetail returns a copy of o with extra detail appended.
func (o Outcome) AppendDetail(extra string) Outcome {
	if o.Detail == "" {
		o.Detail = extra
	} else {
		o.Detail += "; " + extra
	}
	return o
}

// RollbackFailure appends a rollback error to an outcome without masking
// the original failure.
func RollbackFailure(o Outcome, err error) Outcome {
	if err == nil {
		return o
	}
	return o.AppendDetail("rollback also failed: " + err.Error())
}

var errUnknown = errors.New("unknown failure")

// Unknown wraps a recovered panic value.
func Unknown(v interface{}) error {
	return fmt.Errorf("%w: %v", errUnknown, v)
}
