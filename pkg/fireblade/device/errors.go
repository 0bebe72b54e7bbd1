package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies a transport failure.
type ErrorKind string

const (
	KindConnect ErrorKind = "connect"
	KindAuth    ErrorKind = "auth"
	KindTimeout ErrorKind = "timeout"
	KindRefused ErrorKind = "refused"
	KindRPC     ErrorKind = "rpc"
	KindCheck   ErrorKind = "check"
	KindCorrupt ErrorKind = "corrupt"
)

// Sentinel errors, one per kind, for errors.Is.
var (
	ErrConnect = errors.New("cannot connect to device")
	ErrAuth    = errors.New("cannot authenticate to device")
	ErrTimeout = errors.New("device operation timed out")
	ErrRefused = errors.New("connection refused by device")
	ErrRPC     = errors.New("rpc error")
	ErrCheck   = errors.New("commit check failed")
	ErrCorrupt = errors.New("output corrupted")
	ErrClosed  = errors.New("session closed")

	// ErrCandidateDiscarded means a rollback could not be sent, so the
	// session was closed instead; the device drops the uncommitted candidate
	// together with the exclusive lock.
	ErrCandidateDiscarded = errors.New("candidate discarded by closing the session")
)

var kindSentinels = map[ErrorKind]error{
	KindConnect: ErrConnect,
	KindAuth:    ErrAuth,
	KindTimeout: ErrTimeout,
	KindRefused: ErrRefused,
	KindRPC:     ErrRPC,
	KindCheck:   ErrCheck,
	KindCorrupt: ErrCorrupt,
}

// Error is the error type returned by transports and sessions.
type Error struct {
	Kind ErrorKind
	Host string
	Op   string // "open", "load", "commit-check", ...
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Host)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError creates a device error.
func NewError(kind ErrorKind, host, op string, err error) *Error {
	return &Error{Kind: kind, Host: host, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" if err carries no device kind.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// ClassifyDialError maps a raw dial/handshake error to a connection kind.
func ClassifyDialError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return k
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindRefused
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"),
		strings.Contains(msg, "permission denied"):
		return KindAuth
	case strings.Contains(msg, "connection refused"):
		return KindRefused
	case strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	}
	return KindConnect
}

// ClassifyCallError maps an error from an RPC or shell call on an open
// session. Timeouts stay timeouts; anything else is an rpc error.
func ClassifyCallError(err error) ErrorKind {
	if k := KindOf(err); k != "" {
		return k
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindRPC
}
