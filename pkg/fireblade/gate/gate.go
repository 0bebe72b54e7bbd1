// Package gate decides whether a device should be acted upon.
//
// ShouldAct is a pure function of device facts and a run Filter. It does no
// I/O and is safe to call from any goroutine.
package gate

import (
	"fmt"
	"strings"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
)

// Any is the wildcard filter value.
const Any = "any"

// Constraint names, reported in skip reasons.
const (
	ConstraintCampus = "campus"
	ConstraintRole   = "role"
	ConstraintModel  = "model"
)

// Filter is the campus/role/model constraint set for one run. Each field is
// a comma-separated list of accepted values; "" or "any" matches everything.
type Filter struct {
	Campus string `json:"campus,omitempty" yaml:"campus,omitempty"`
	Role   string `json:"role,omitempty" yaml:"role,omitempty"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
}

// IsEmpty reports whether every constraint is a wildcard, so facts are not
// needed to evaluate it.
func (f Filter) IsEmpty() bool {
	return isWildcard(f.Campus) && isWildcard(f.Role) && isWildcard(f.Model)
}

func (f Filter) String() string {
	show := func(v string) string {
		if isWildcard(v) {
			return Any
		}
		return v
	}
	return fmt.Sprintf("campus=%s role=%s model=%s", show(f.Campus), show(f.Role), show(f.Model))
}

// Decision is the result of ShouldAct.
type Decision struct {
	Act        bool
	Constraint string // which constraint failed, empty when Act
	Reason     string
}

// Continue is the decision to act on the device.
var Continue = Decision{Act: true}

// ShouldAct evaluates campus, then role, then model. The first mismatch
// short-circuits and names the skip reason.
func ShouldAct(facts device.Facts, filter Filter) Decision {
	checks := []struct {
		name   string
		want   string
		actual string
	}{
		{ConstraintCampus, filter.Campus, facts.Campus},
		{ConstraintRole, filter.Role, facts.Role},
		{ConstraintModel, filter.Model, facts.Model},
	}

	for _, c := range checks {
		if !matches(c.want, c.actual) {
			return skip(c.name, c.want, c.actual)
		}
	}
	return Continue
}

func skip(constraint, want, actual string) Decision {
	if actual == "" {
		actual = "unknown"
	}
	return Decision{
		Constraint: constraint,
		Reason:     fmt.Sprintf("%s mismatch: device is %s, want %s", constraint, actual, want),
	}
}

func isWildcard(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, Any)
}

func matches(want, actual string) bool {
	if isWildcard(want) {
		return true
	}
	for _, w := range strings.Split(want, ",") {
		w = strings.TrimSpace(w)
		if strings.EqualFold(w, Any) || (w != "" && strings.EqualFold(w, actual)) {
			return true
		}
	}
	return false
}
