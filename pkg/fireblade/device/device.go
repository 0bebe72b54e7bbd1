// Package device wraps one management session to one switch.
//
// The concrete protocol lives behind Transport (see package junos); the rest
// of fireblade only talks to a Session.
package device

import (
	"context"
	"time"
)

// DefaultPort is the NETCONF-over-SSH port.
const DefaultPort = 830

// Credentials are the login used for every device in a run.
type Credentials struct {
	Username string
	Password string
}

// DialOptions tune how a session is opened.
type DialOptions struct {
	Port    int
	Timeout time.Duration
}

// CommitOptions select how a checked candidate becomes active.
type CommitOptions struct {
	Timeout        time.Duration
	ConfirmMinutes int    // >0: commit confirmed, device reverts unless confirmed
	AtTime         string // non-empty: scheduled commit at this device-local time
}

// Transport is the protocol client for one open connection.
//
// Diff returns "" when the candidate equals the active configuration.
// Commit returns the device acknowledgement text.
type Transport interface {
	Close() error

	RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error)
	Call(ctx context.Context, rpc string, timeout time.Duration) (string, error)
	Upload(ctx context.Context, localPath, remotePath string) error

	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	LoadConfig(ctx context.Context, directive, format string) error
	Diff(ctx context.Context) (string, error)
	CommitCheck(ctx context.Context, timeout time.Duration) error
	Commit(ctx context.Context, opts CommitOptions) (string, error)
	Rollback(ctx context.Context) error

	Facts(ctx context.Context) (Facts, error)
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, host string, creds Credentials, opts DialOptions) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, host string, creds Credentials, opts DialOptions) (Transport, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, host string, creds Credentials, opts DialOptions) (Transport, error) {
	return f(ctx, host, creds, opts)
}
