package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
)

// FakeTransport is an in-memory device. Configuration is a list of "set"
// statements; "delete X" removes every statement starting with "set X".
// All fields may be set before the transport is handed out; after that,
// read them through the accessor methods.
type FakeTransport struct {
	Host string

	FactsValue device.Facts
	FactsErr   error

	// CommandOutputs maps a command (exact match) to raw output.
	CommandOutputs map[string]string
	CommandErrs    map[string]error
	// RPCReplies maps a substring of the RPC body to a reply.
	RPCReplies map[string]string
	RPCErrs    map[string]error

	LoadErrs    map[string]error
	LockErr     error
	DiffErr     error
	CheckErr    error
	CommitErr   error
	RollbackErr error
	UploadErr   error
	CommitAck   string

	// Delay is slept inside every call, honoring ctx.
	Delay time.Duration
	// OnCall runs before each journaled call, outside the lock. Tests use it
	// to cancel a context at a chosen step.
	OnCall func(call string)

	mu         sync.Mutex
	active     []string
	candidate  []string
	calls      []string
	locked     bool
	rollbacks  int
	commits    []device.CommitOptions
	uploads    []string
	closeCount int
	onClose    func()
}

// NewFakeTransport creates a fake device with the given active configuration.
func NewFakeTransport(host string, active ...string) *FakeTransport {
	return &FakeTransport{
		Host:      host,
		active:    append([]string(nil), active...),
		candidate: append([]string(nil), active...),
		FactsValue: device.Facts{
			Hostname: host,
			Model:    device.ModelEX4300P,
		},
	}
}

func (f *FakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	hook := f.OnCall
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
}

// wait fails once ctx is done, like a real transport that never sends.
func (f *FakeTransport) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeTransport) Close() error {
	f.record("close")
	f.mu.Lock()
	f.closeCount++
	first := f.closeCount == 1
	onClose := f.onClose
	f.mu.Unlock()
	if first && onClose != nil {
		onClose()
	}
	return nil
}

func (f *FakeTransport) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	f.record("command " + command)
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if err := f.CommandErrs[command]; err != nil {
		return "", err
	}
	if out, ok := f.CommandOutputs[command]; ok {
		return out, nil
	}
	return Framed(command, ""), nil
}

func (f *FakeTransport) Call(ctx context.Context, rpc string, timeout time.Duration) (string, error) {
	f.record("rpc " + rpc)
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	for key, err := range f.RPCErrs {
		if strings.Contains(rpc, key) {
			return "", err
		}
	}
	for key, reply := range f.RPCReplies {
		if strings.Contains(rpc, key) {
			return reply, nil
		}
	}
	return "<ok/>", nil
}

func (f *FakeTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	f.record("upload " + remotePath)
	if f.UploadErr != nil {
		return f.UploadErr
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, remotePath)
	f.mu.Unlock()
	return nil
}

func (f *FakeTransport) Lock(ctx context.Context) error {
	f.record("lock")
	if f.LockErr != nil {
		return f.LockErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return errors.New("configuration database locked")
	}
	f.locked = true
	return nil
}

func (f *FakeTransport) Unlock(ctx context.Context) error {
	f.record("unlock")
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.locked = false
	f.mu.Unlock()
	return nil
}

func (f *FakeTransport) LoadConfig(ctx context.Context, directive, format string) error {
	f.record("load " + directive)
	if err := f.wait(ctx); err != nil {
		return err
	}
	if err := f.LoadErrs[directive]; err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasPrefix(directive, "set "):
		stmt := directive
		for _, s := range f.candidate {
			if s == stmt {
				return nil
			}
		}
		f.candidate = append(f.candidate, stmt)
	case strings.HasPrefix(directive, "delete "):
		path := "set " + strings.TrimPrefix(directive, "delete ")
		kept := f.candidate[:0:0]
		for _, s := range f.candidate {
			if s == path || strings.HasPrefix(s, path+" ") {
				continue
			}
			kept = append(kept, s)
		}
		f.candidate = kept
	default:
		return device.NewError(device.KindRPC, f.Host, "load", fmt.Errorf("syntax error: %q", directive))
	}
	return nil
}

func (f *FakeTransport) Diff(ctx context.Context) (string, error) {
	f.record("diff")
	if f.DiffErr != nil {
		return "", f.DiffErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return diffStatements(f.active, f.candidate), nil
}

func (f *FakeTransport) CommitCheck(ctx context.Context, timeout time.Duration) error {
	f.record("commit-check")
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.CheckErr
}

func (f *FakeTransport) Commit(ctx context.Context, opts device.CommitOptions) (string, error) {
	f.record("commit")
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if f.CommitErr != nil {
		return "", f.CommitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, opts)
	if opts.AtTime == "" {
		f.active = append([]string(nil), f.candidate...)
	}
	if f.CommitAck != "" {
		return f.CommitAck, nil
	}
	return "commit complete", nil
}

func (f *FakeTransport) Rollback(ctx context.Context) error {
	f.record("rollback")
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	if f.RollbackErr != nil {
		return f.RollbackErr
	}
	f.candidate = append([]string(nil), f.active...)
	return nil
}

func (f *FakeTransport) Facts(ctx context.Context) (device.Facts, error) {
	f.record("facts")
	if err := f.wait(ctx); err != nil {
		return device.Facts{}, err
	}
	return f.FactsValue, f.FactsErr
}

// Calls returns the journal of calls made so far.
func (f *FakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether any journal entry starts with prefix.
func (f *FakeTransport) Called(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// Active returns the active configuration.
func (f *FakeTransport) Active() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.active...)
}

// Candidate returns the candidate configuration.
func (f *FakeTransport) Candidate() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.candidate...)
}

// Rollbacks returns how many times Rollback was invoked.
func (f *FakeTransport) Rollbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbacks
}

// Commits returns the options of every successful commit.
func (f *FakeTransport) Commits() []device.CommitOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]device.CommitOptions(nil), f.commits...)
}

// Uploads returns the remote paths written.
func (f *FakeTransport) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

// Locked reports whether the configuration lock is held.
func (f *FakeTransport) Locked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked
}

// CloseCount returns how many times Close was called.
func (f *FakeTransport) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

// Framed wraps body in the shell framing a Junos "cli -c" call produces: a
// command echo line first and a prompt line last.
func Framed(command, body string) string {
	var sb strings.Builder
	sb.WriteString("% cli -c \"" + command + " | no-more\"\n")
	if body != "" {
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("% ")
	return sb.String()
}

func diffStatements(active, candidate []string) string {
	in := func(list []string, s string) bool {
		for _, x := range list {
			if x == s {
				return true
			}
		}
		return false
	}
	var sb strings.Builder
	for _, s := range active {
		if !in(candidate, s) {
			sb.WriteString("- " + s + "\n")
		}
	}
	for _, s := range candidate {
		if !in(active, s) {
			sb.WriteString("+ " + s + "\n")
		}
	}
	return sb.String()
}

// FakeDialer hands out FakeTransports by host and tracks how many are open
// at once. A transport handed out again counts as a new session: its close
// accounting is re-armed on every Dial.
type FakeDialer struct {
	// New builds the transport for a host that has no entry in Transports.
	New        func(host string) *FakeTransport
	Transports map[string]*FakeTransport
	Errs       map[string]error
	DialDelay  time.Duration

	mu      sync.Mutex
	open    int
	maxOpen int
	dials   int
}

// NewFakeDialer creates a dialer that builds a default FakeTransport per host.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		Transports: make(map[string]*FakeTransport),
		Errs:       make(map[string]error),
	}
}

func (d *FakeDialer) Dial(ctx context.Context, host string, creds device.Credentials, opts device.DialOptions) (device.Transport, error) {
	if d.DialDelay > 0 {
		select {
		case <-time.After(d.DialDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if err := d.Errs[host]; err != nil {
		return nil, err
	}
	t, ok := d.Transports[host]
	if !ok {
		if d.New != nil {
			t = d.New(host)
		} else {
			t = NewFakeTransport(host)
		}
		d.Transports[host] = t
	}

	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	t.mu.Lock()
	t.closeCount = 0
	t.onClose = func() {
		d.mu.Lock()
		d.open--
		d.mu.Unlock()
	}
	t.mu.Unlock()
	return t, nil
}

// Open returns how many transports are currently open.
func (d *FakeDialer) Open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// MaxOpen returns the high-water mark of concurrently open transports.
func (d *FakeDialer) MaxOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// Dials returns the number of Dial calls.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Transport returns the transport handed out for host, or nil.
func (d *FakeDialer) Transport(host string) *FakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Transports[host]
}
