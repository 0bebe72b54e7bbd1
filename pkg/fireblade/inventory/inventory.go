// Package inventory classifies switches: campus and role from the hostname
// naming convention, chassis model from the virtual-chassis member table.
package inventory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/netxops/gotextfsm"

	"github.com/fireblade-network/fireblade/pkg/fireblade/command"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// VirtualChassisCommand lists chassis members.
const VirtualChassisCommand = "show virtual-chassis"

// hostnamePattern is <campus>-<building>-<role>-<index>.
var hostnamePattern = regexp.MustCompile(`^([a-z]+)-([a-z0-9]+)-([a-z]+)-(\d+)$`)

const virtualChassisTemplate = `Value MEMBER (\d+)
Value STATUS (\S+)
Value SERIAL (\S+)
Value MODEL (\S+)
Value PRIORITY (\d+)
Value ROLE (\S+)

Start
  ^\s*${MEMBER}\s+\(FPC\s+\d+\)\s+${STATUS}\s+${SERIAL}\s+${MODEL}\s+${PRIORITY}\s+${ROLE} -> Record
`

// Classifier implements device.Classifier for EX virtual chassis.
type Classifier struct {
	Timeout time.Duration
}

// NewClassifier returns a classifier with the default command timeout.
func NewClassifier() *Classifier {
	return &Classifier{Timeout: 180 * time.Second}
}

// Classify fills Campus, Role, Members and the chassis-level Model.
func (c *Classifier) Classify(ctx context.Context, t device.Transport, base device.Facts) (device.Facts, error) {
	name := base.Hostname
	if name == "" {
		return base, fmt.Errorf("device reported no hostname")
	}
	base.Campus, base.Role = ParseHostname(name)

	raw, err := t.RunCommand(ctx, VirtualChassisCommand, c.Timeout)
	if err != nil {
		return base, err
	}
	text, ok := command.Clean(raw)
	if !ok {
		return base, device.NewError(device.KindCorrupt, name, "classify",
			fmt.Errorf("output of %q is corrupted by syslog message", VirtualChassisCommand))
	}

	members, err := ParseMembers(text)
	if err != nil {
		return base, err
	}
	base.Members = members
	base.Model = ChassisModel(members, base.Model)

	util.WithDevice(name).Debugf("classified campus=%s role=%s model=%s members=%d",
		base.Campus, base.Role, base.Model, len(members))
	return base, nil
}

// ParseHostname returns campus and role from a hostname such as
// "bby-brh7046-ext-1.managenet.sfu.ca". Unknown names yield empty strings.
func ParseHostname(host string) (campus, role string) {
	m := hostnamePattern.FindStringSubmatch(strings.ToLower(util.FirstLabel(host)))
	if m == nil {
		return "", ""
	}
	return m[1], m[3]
}

// ParseMembers parses "show virtual-chassis" output.
func ParseMembers(text string) ([]device.Member, error) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(virtualChassisTemplate); err != nil {
		return nil, fmt.Errorf("virtual-chassis template: %w", err)
	}

	parser := gotextfsm.ParserOutput{}
	if err := parser.ParseTextString(text, fsm, true); err != nil {
		return nil, fmt.Errorf("parse virtual-chassis: %w", err)
	}

	members := make([]device.Member, 0, len(parser.Dict))
	for _, record := range parser.Dict {
		members = append(members, device.Member{
			ID:     getString(record, "MEMBER"),
			Status: getString(record, "STATUS"),
			Model:  strings.ToUpper(getString(record, "MODEL")),
			Role:   strings.TrimSuffix(getString(record, "ROLE"), "*"),
		})
	}
	return members, nil
}

// ChassisModel reduces member models to one chassis model: the shared model
// when all members agree, device.ModelMixed when they differ, fallback when
// there are no members.
func ChassisModel(members []device.Member, fallback string) string {
	model := ""
	for _, m := range members {
		switch {
		case model == "":
			model = m.Model
		case !strings.EqualFold(model, m.Model):
			return device.ModelMixed
		}
	}
	if model == "" {
		return strings.ToUpper(fallback)
	}
	return strings.ToUpper(model)
}

func getString(record map[string]interface{}, key string) string {
	if v, ok := record[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}
