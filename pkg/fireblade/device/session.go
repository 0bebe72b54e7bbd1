package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fireblade-network/fireblade/pkg/util"
)

// Session is one open management connection to one device. It is owned by
// a single per-device task and is never shared.
type Session struct {
	Host string

	transport  Transport
	classifier Classifier

	facts    *Facts
	closed   bool
	closeOne sync.Once
}

// Open dials host and returns an open Session. Dial failures are returned as
// *Error with a connection kind (connect, auth, timeout, refused).
func Open(ctx context.Context, dialer Dialer, host string, creds Credentials, opts DialOptions, classifier Classifier) (*Session, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	t, err := dialer.Dial(ctx, host, creds, opts)
	if err != nil {
		var de *Error
		if errors.As(err, &de) && de.Kind != KindRPC {
			return nil, de
		}
		return nil, NewError(ClassifyDialError(err), host, "open", err)
	}

	util.WithDevice(host).Debug("session opened")
	return &Session{Host: host, transport: t, classifier: classifier}, nil
}

// NewSession wraps an already open transport.
func NewSession(host string, t Transport, classifier Classifier) *Session {
	return &Session{Host: host, transport: t, classifier: classifier}
}

// Close releases the connection. Safe to call any number of times; errors
// are logged, never returned.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOne.Do(func() {
		s.closed = true
		if s.transport == nil {
			return
		}
		if err := s.transport.Close(); err != nil {
			util.WithDevice(s.Host).Debugf("close: %v", err)
		}
		util.WithDevice(s.Host).Debug("session closed")
	})
}

// IsOpen reports whether Close has not been called yet.
func (s *Session) IsOpen() bool {
	return s != nil && !s.closed
}

// Facts returns the device facts, fetching and classifying them on first
// use. The result is cached for the life of the session.
func (s *Session) Facts(ctx context.Context) (Facts, error) {
	if s.facts != nil {
		return *s.facts, nil
	}
	if err := s.check("facts"); err != nil {
		return Facts{}, err
	}

	f, err := s.transport.Facts(ctx)
	if err != nil {
		return Facts{}, s.wrap("facts", err)
	}
	if s.classifier != nil {
		f, err = s.classifier.Classify(ctx, s.transport, f)
		if err != nil {
			return Facts{}, s.wrap("classify", err)
		}
	}
	s.facts = &f
	return f, nil
}

// RunCommand issues one operational command and returns its raw output.
func (s *Session) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if err := s.check("command"); err != nil {
		return "", err
	}
	out, err := s.transport.RunCommand(ctx, command, timeout)
	return out, s.wrap("command", err)
}

// Call issues a raw RPC.
func (s *Session) Call(ctx context.Context, rpc string, timeout time.Duration) (string, error) {
	if err := s.check("rpc"); err != nil {
		return "", err
	}
	out, err := s.transport.Call(ctx, rpc, timeout)
	return out, s.wrap("rpc", err)
}

// Upload copies a local file to the device.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := s.check("upload"); err != nil {
		return err
	}
	return s.wrap("upload", s.transport.Upload(ctx, localPath, remotePath))
}

// Lock takes the exclusive configuration lock.
func (s *Session) Lock(ctx context.Context) error {
	if err := s.check("lock"); err != nil {
		return err
	}
	return s.wrap("lock", s.transport.Lock(ctx))
}

// Unlock releases the configuration lock.
func (s *Session) Unlock(ctx context.Context) error {
	if err := s.check("unlock"); err != nil {
		return err
	}
	return s.wrap("unlock", s.transport.Unlock(ctx))
}

// Load applies one directive to the candidate configuration.
func (s *Session) Load(ctx context.Context, directive, format string) error {
	if err := s.check("load"); err != nil {
		return err
	}
	return s.wrap("load", s.transport.LoadConfig(ctx, directive, format))
}

// Diff returns the candidate-vs-active diff, "" when there is none.
func (s *Session) Diff(ctx context.Context) (string, error) {
	if err := s.check("diff"); err != nil {
		return "", err
	}
	diff, err := s.transport.Diff(ctx)
	return diff, s.wrap("diff", err)
}

// CommitCheck validates the candidate on the device.
func (s *Session) CommitCheck(ctx context.Context, timeout time.Duration) error {
	if err := s.check("commit-check"); err != nil {
		return err
	}
	return s.wrap("commit-check", s.transport.CommitCheck(ctx, timeout))
}

// Commit activates the candidate.
func (s *Session) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if err := s.check("commit"); err != nil {
		return "", err
	}
	ack, err := s.transport.Commit(ctx, opts)
	return ack, s.wrap("commit", err)
}

// Rollback discards the candidate.
func (s *Session) Rollback(ctx context.Context) error {
	if err := s.check("rollback"); err != nil {
		return err
	}
	return s.wrap("rollback", s.transport.Rollback(ctx))
}

func (s *Session) check(op string) error {
	if s.closed {
		return NewError(KindRPC, s.Host, op, ErrClosed)
	}
	return nil
}

// wrap tags err with host and op, keeping any kind the transport assigned.
func (s *Session) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Host == "" {
			de.Host = s.Host
		}
		if de.Op == "" {
			de.Op = op
		}
		return de
	}
	return NewError(ClassifyCallError(err), s.Host, op, err)
}
