package device

import (
	"context"
	"strings"
)

// Chassis model classes used by gating and by install/snapshot.
const (
	ModelEX4300P  = "EX4300-48P"
	ModelEX4300MP = "EX4300-48MP"
	ModelMixed    = "mixed"
)

// Member is one virtual-chassis member.
type Member struct {
	ID     string
	Model  string
	Role   string
	Status string
}

// Facts describe a device. Hostname and Model come from the transport;
// Role, Campus and Members are filled in by a Classifier.
type Facts struct {
	Hostname string
	Model    string
	Version  string
	Role     string
	Campus   string
	Members  []Member
}

// MemberIDs returns the IDs of members whose model matches (case-insensitive).
func (f Facts) MemberIDs(model string) []string {
	var ids []string
	for _, m := range f.Members {
		if strings.EqualFold(m.Model, model) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Classifier extends base facts with inventory knowledge (role, campus,
// per-member models). It may run commands on the transport.
type Classifier interface {
	Classify(ctx context.Context, t Transport, base Facts) (Facts, error)
}
