package change

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fireblade-network/fireblade/pkg/util"
)

// Mode selects how a checked candidate is finished.
type Mode string

const (
	DryRun          Mode = "dry-run"
	CommitNow       Mode = "commit"
	CommitConfirmed Mode = "commit-confirmed"
	CommitAt        Mode = "commit-at"
)

// Modes lists every mode for help text.
var Modes = []Mode{DryRun, CommitNow, CommitConfirmed, CommitAt}

// ParseMode accepts a mode name, including the older script spellings
// ("testride", "testconfig", "commitconfirm").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dry-run", "dryrun", "test-and-rollback", "testride", "testconfig":
		return DryRun, nil
	case "commit", "commit-now":
		return CommitNow, nil
	case "commit-confirmed", "commitconfirm", "confirm":
		return CommitConfirmed, nil
	case "commit-at", "at":
		return CommitAt, nil
	}
	return "", fmt.Errorf("unknown change mode %q (want one of %v)", s, Modes)
}

// UnmarshalYAML lets request files use any spelling ParseMode accepts.
func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	mode, err := ParseMode(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = mode
	return nil
}

// ChangeSet is an ordered list of set-format directives plus the commit mode.
// Directives are applied in order; a delete followed by a set on the same
// path is meaningful.
type ChangeSet struct {
	Directives     []string `yaml:"directives" json:"directives"`
	Mode           Mode     `yaml:"mode" json:"mode"`
	ConfirmMinutes int      `yaml:"confirm_minutes,omitempty" json:"confirm_minutes,omitempty"`
	At             string   `yaml:"at,omitempty" json:"at,omitempty"` // device-local "yyyy-mm-dd hh:mm[:ss]"
}

// Validate checks mode parameters. An empty directive list is valid; it
// always produces NoDifference.
func (cs ChangeSet) Validate() error {
	v := &util.ValidationBuilder{}
	switch cs.Mode {
	case DryRun, CommitNow:
	case CommitConfirmed:
		v.Add(cs.ConfirmMinutes > 0, "commit-confirmed requires confirm minutes > 0")
	case CommitAt:
		v.Add(strings.TrimSpace(cs.At) != "", "commit-at requires a commit time")
	default:
		v.AddErrorf("unknown change mode %q", cs.Mode)
	}
	for i, d := range cs.Directives {
		v.Add(strings.TrimSpace(d) != "", fmt.Sprintf("directive %d is empty", i+1))
	}
	return v.Build()
}
