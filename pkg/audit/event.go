// Package audit records per-device outcomes as a JSON-lines trail.
package audit

import (
	"fmt"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

// Event is one device outcome in one run.
type Event struct {
	ID        string           `json:"id"`
	RunID     string           `json:"run_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	User      string           `json:"user"`
	Device    string           `json:"device"`
	Operation string           `json:"operation"`
	Category  outcome.Category `json:"category"`
	Detail    string           `json:"detail,omitempty"`
	Diff      string           `json:"diff,omitempty"`
	Output    string           `json:"output,omitempty"`
	Pending   bool             `json:"pending,omitempty"`
	Success   bool             `json:"success"`
	Execute   bool             `json:"execute"` // false for dry runs
	Duration  time.Duration    `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	RunID       string
	Category    outcome.Category
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// FromOutcome builds the event for a finished device.
func FromOutcome(user, operation string, o outcome.Outcome) *Event {
	e := NewEvent(user, o.Device, operation)
	if !o.At.IsZero() {
		e.Timestamp = o.At
	}
	e.Category = o.Category
	e.Detail = o.Detail
	e.Diff = o.Diff
	e.Output = o.Output
	e.Pending = o.Pending
	e.Success = !o.Category.IsFailure()
	e.Duration = o.Duration
	return e
}

// WithRun tags the event with a run identifier.
func (e *Event) WithRun(id string) *Event {
	e.RunID = id
	return e
}

// WithExecuteMode marks if execute mode was used
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.Execute = execute
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// Matches reports whether e satisfies every set field of f.
// Limit and Offset are ignored.
func (f Filter) Matches(e *Event) bool {
	switch {
	case f.Device != "" && e.Device != f.Device,
		f.User != "" && e.User != f.User,
		f.Operation != "" && e.Operation != f.Operation,
		f.RunID != "" && e.RunID != f.RunID,
		f.Category != "" && e.Category != f.Category:
		return false
	case !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime),
		!f.EndTime.IsZero() && e.Timestamp.After(f.EndTime):
		return false
	case f.SuccessOnly && !e.Success,
		f.FailureOnly && e.Success:
		return false
	}
	return true
}

func (f Filter) page(events []*Event) []*Event {
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return nil
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}
