// Package change drives a configuration change through lock, load, diff,
// commit check and commit or rollback on one device.
//
// Every path that loads a candidate ends with the candidate either committed,
// scheduled, or rolled back. The configuration lock is always released.
package change

import (
	"context"
	"errors"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Default timeouts.
const (
	DefaultCheckTimeout  = 600 * time.Second
	DefaultCommitTimeout = 600 * time.Second
	DefaultAtTimeout     = 1200 * time.Second

	// DefaultCleanupTimeout bounds rollback and unlock, which run even after
	// the caller's context is cancelled.
	DefaultCleanupTimeout = 120 * time.Second
)

// State is a change state machine state.
type State string

const (
	Idle            State = "idle"
	Loaded          State = "loaded"
	Diffed          State = "diffed"
	NoDiff          State = "no-diff"
	CheckPending    State = "check-pending"
	CheckPassed     State = "check-passed"
	CheckFailed     State = "check-failed"
	Committed       State = "committed"
	ConfirmPending  State = "confirm-pending"
	ScheduledCommit State = "scheduled-commit"
	RolledBack      State = "rolled-back"
)

// Configurer is the part of a session the executor needs.
type Configurer interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Load(ctx context.Context, directive, format string) error
	Diff(ctx context.Context) (string, error)
	CommitCheck(ctx context.Context, timeout time.Duration) error
	Commit(ctx context.Context, opts device.CommitOptions) (string, error)
	Rollback(ctx context.Context) error
}

// Result is the final state and the outcome of one change.
type Result struct {
	State   State
	Outcome outcome.Outcome
}

// Executor applies ChangeSets.
type Executor struct {
	Host          string
	CheckTimeout  time.Duration
	CommitTimeout time.Duration
	AtTimeout     time.Duration
	// CleanupTimeout bounds rollback and unlock.
	CleanupTimeout time.Duration
}

type run struct {
	*Executor
	ctx   context.Context
	c     Configurer
	state State
	diff  string
	// discarded is set when the candidate went away with the session.
	discarded bool
}

func (r *run) to(s State) {
	util.WithDevice(r.Host).WithField("from", r.state).WithField("to", s).Debug("change state")
	r.state = s
}

// cleanup returns a context for rollback and unlock. It keeps the run's
// values but not its cancellation: an interrupted run still has to release
// the candidate.
func (r *run) cleanup() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.ctx), orDefault(r.CleanupTimeout, DefaultCleanupTimeout))
}

// rollback discards the candidate. A candidate dropped by closing the
// session counts as rolled back.
func (r *run) rollback() error {
	ctx, cancel := r.cleanup()
	defer cancel()
	err := r.c.Rollback(ctx)
	if errors.Is(err, device.ErrCandidateDiscarded) {
		util.WithDevice(r.Host).Warnf("rollback: %v", err)
		r.discarded = true
		r.to(RolledBack)
		return nil
	}
	if err == nil {
		r.to(RolledBack)
	}
	return err
}

func (r *run) result(o outcome.Outcome) Result {
	return Result{State: r.state, Outcome: o}
}

// Apply runs cs against c. It never returns with a loaded candidate left
// open: every failure after the first load triggers a rollback.
func (e *Executor) Apply(ctx context.Context, c Configurer, cs ChangeSet) Result {
	r := &run{Executor: e, ctx: ctx, c: c, state: Idle}

	if err := cs.Validate(); err != nil {
		return r.result(outcome.NewProtocolError(e.Host, err.Error()))
	}

	if err := c.Lock(ctx); err != nil {
		return r.result(outcome.FromError(e.Host, err))
	}
	defer func() {
		ctx, cancel := r.cleanup()
		defer cancel()
		if err := c.Unlock(ctx); err != nil {
			util.WithDevice(e.Host).Warnf("unlock: %v", err)
		}
	}()

	for _, d := range cs.Directives {
		if err := c.Load(ctx, d, "set"); err != nil {
			return r.abort(err)
		}
	}
	r.to(Loaded)

	diff, err := c.Diff(ctx)
	if err != nil {
		return r.abort(err)
	}
	r.diff = diff
	r.to(Diffed)

	if diff == "" {
		r.to(NoDiff)
		return r.result(outcome.NewNoDifference(e.Host))
	}

	r.to(CheckPending)
	if err := c.CommitCheck(ctx, orDefault(e.CheckTimeout, DefaultCheckTimeout)); err != nil {
		r.to(CheckFailed)
		return r.abort(err)
	}
	r.to(CheckPassed)

	switch cs.Mode {
	case CommitNow:
		ack, err := c.Commit(ctx, device.CommitOptions{Timeout: orDefault(e.CommitTimeout, DefaultCommitTimeout)})
		if err != nil {
			return r.abort(err)
		}
		r.to(Committed)
		return r.result(outcome.NewCommitted(e.Host, diff, ack))

	case CommitConfirmed:
		ack, err := c.Commit(ctx, device.CommitOptions{
			Timeout:        orDefault(e.CommitTimeout, DefaultCommitTimeout),
			ConfirmMinutes: cs.ConfirmMinutes,
		})
		if err != nil {
			return r.abort(err)
		}
		r.to(ConfirmPending)
		return r.result(outcome.NewConfirmPending(e.Host, diff, ack, cs.ConfirmMinutes))

	case CommitAt:
		ack, err := c.Commit(ctx, device.CommitOptions{
			Timeout: orDefault(e.AtTimeout, DefaultAtTimeout),
			AtTime:  cs.At,
		})
		if err != nil {
			return r.abort(err)
		}
		r.to(ScheduledCommit)
		return r.result(outcome.NewScheduled(e.Host, diff, ack, cs.At))
	}

	if err := r.rollback(); err != nil {
		return r.result(outcome.FromError(e.Host, err).WithDiff(diff))
	}
	o := outcome.NewRolledBack(e.Host, diff)
	if r.discarded {
		o = o.AppendDetail(device.ErrCandidateDiscarded.Error())
	}
	return r.result(o)
}

// abort rolls back the candidate and reports err. A rollback failure is
// appended to the detail without replacing the original error.
func (r *run) abort(err error) Result {
	var o outcome.Outcome
	if device.KindOf(err) == device.KindCheck {
		o = outcome.NewCommitCheckFailed(r.Host, r.diff, err.Error())
	} else {
		o = outcome.FromError(r.Host, err).WithDiff(r.diff)
	}

	if rbErr := r.rollback(); rbErr != nil {
		util.WithDevice(r.Host).Errorf("rollback after %v: %v", err, rbErr)
		return r.result(outcome.RollbackFailure(o, rbErr))
	}
	if r.discarded {
		o = o.AppendDetail(device.ErrCandidateDiscarded.Error())
	}
	return r.result(o)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// IsOpenCandidate reports whether s is a state that leaves the candidate
// loaded on the device.
func IsOpenCandidate(s State) bool {
	switch s {
	case Loaded, Diffed, CheckPending, CheckPassed, CheckFailed:
		return true
	}
	return false
}
