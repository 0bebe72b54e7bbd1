package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"auth", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"), KindAuth},
		{"refused syscall", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindRefused},
		{"refused text", errors.New("dial tcp 10.0.0.1:830: connect: connection refused"), KindRefused},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"other", errors.New("no route to host"), KindConnect},
		{"already typed", NewError(KindAuth, "h", "open", nil), KindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDialError(tt.err); got != tt.want {
				t.Errorf("ClassifyDialError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyCallError(t *testing.T) {
	if got := ClassifyCallError(context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("deadline = %q, want timeout", got)
	}
	if got := ClassifyCallError(errors.New("syntax error")); got != KindRPC {
		t.Errorf("plain error = %q, want rpc", got)
	}
	if got := ClassifyCallError(NewError(KindCheck, "h", "commit-check", nil)); got != KindCheck {
		t.Errorf("typed error = %q, want check", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("configuration check-out failed")
	err := NewError(KindCheck, "bby-core-1", "commit-check", cause)

	if !errors.Is(err, ErrCheck) {
		t.Error("Error should match its kind sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("Error should match its cause")
	}
	if errors.Is(err, ErrAuth) {
		t.Error("Error should not match other sentinels")
	}
	want := "commit-check bby-core-1: configuration check-out failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFactsMemberIDs(t *testing.T) {
	f := Facts{Members: []Member{
		{ID: "0", Model: "ex4300-48p"},
		{ID: "1", Model: "ex4300-48mp"},
		{ID: "2", Model: "EX4300-48P"},
	}}
	ids := f.MemberIDs(ModelEX4300P)
	if len(ids) != 2 || ids[0] != "0" || ids[1] != "2" {
		t.Errorf("MemberIDs() = %v, want [0 2]", ids)
	}
}
