// Package junos is the device.Transport for Junos switches.
//
// Configuration and facts go over NETCONF (port 830 by default). Operational
// commands run through "cli -c" in a device shell, and files are copied with
// SFTP; both use a second SSH connection on port 22 opened on first use.
package junos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Juniper/go-netconf/netconf"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// DefaultSSHPort serves the shell and SFTP.
const DefaultSSHPort = 22

// DefaultRPCTimeout applies to RPCs issued without an explicit timeout.
const DefaultRPCTimeout = 120 * time.Second

// Dialer opens Junos transports.
type Dialer struct {
	SSHPort int
	// HostKeyCallback defaults to accepting any host key.
	HostKeyCallback ssh.HostKeyCallback
}

func (d *Dialer) sshConfig(creds device.Credentials, timeout time.Duration) *ssh.ClientConfig {
	cb := d.HostKeyCallback
	if cb == nil {
		cb = ssh.InsecureIgnoreHostKey()
	}
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: cb,
		Timeout:         timeout,
	}
}

// Dial opens a NETCONF session to host.
func (d *Dialer) Dial(ctx context.Context, host string, creds device.Credentials, opts device.DialOptions) (device.Transport, error) {
	port := opts.Port
	if port == 0 {
		port = device.DefaultPort
	}
	timeout := opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout == 0 || left < timeout {
			timeout = left
		}
	}
	cfg := d.sshConfig(creds, timeout)
	target := net.JoinHostPort(host, strconv.Itoa(port))

	type dialResult struct {
		s   *netconf.Session
		err error
	}
	done := make(chan dialResult, 1)
	go func() {
		s, err := netconf.DialSSHTimeout(target, cfg, timeout)
		done <- dialResult{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		sshPort := d.SSHPort
		if sshPort == 0 {
			sshPort = DefaultSSHPort
		}
		return &Transport{
			host:    host,
			nc:      r.s,
			sshAddr: net.JoinHostPort(host, strconv.Itoa(sshPort)),
			sshCfg:  d.sshConfig(creds, opts.Timeout),
		}, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// rpcSession is the part of *netconf.Session the transport uses.
type rpcSession interface {
	Exec(methods ...netconf.RPCMethod) (*netconf.RPCReply, error)
	Close() error
}

// Transport is one NETCONF session plus a lazily opened SSH client.
type Transport struct {
	host    string
	nc      rpcSession
	sshAddr string
	sshCfg  *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
	sh     *shell

	// pending is closed when an RPC abandoned by its caller's deadline
	// finally gets its reply. Replies arrive in request order, so nothing
	// else may be sent before then.
	pending   chan struct{}
	pendingOp string
	discarded bool
}

// Close tears down the shell, the SSH client and the NETCONF session.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if t.sh != nil {
		t.sh.close()
		t.sh = nil
	}
	if t.client != nil {
		if err := t.client.Close(); err != nil {
			errs = append(errs, err)
		}
		t.client = nil
	}
	if t.nc != nil {
		if err := t.nc.Close(); err != nil && !errors.Is(err, io.EOF) {
			errs = append(errs, err)
		}
		t.nc = nil
	}
	return errors.Join(errs...)
}

// exec runs one RPC, bounded by timeout and ctx. When the deadline passes
// first the RPC is left running on the device and later calls wait for it.
func (t *Transport) exec(ctx context.Context, op, rpc string, timeout time.Duration) (string, error) {
	nc, err := t.acquire(ctx, op)
	if err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		reply *netconf.RPCReply
		err   error
	}
	done := make(chan execResult, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		reply, err := nc.Exec(netconf.RawMethod(rpc))
		done <- execResult{reply, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", t.rpcError(op, r.err)
		}
		if r.reply == nil {
			return "", nil
		}
		return r.reply.Data, nil
	case <-ctx.Done():
		t.mu.Lock()
		t.pending, t.pendingOp = finished, op
		t.mu.Unlock()
		return "", device.NewError(device.KindTimeout, t.host, op, ctx.Err())
	}
}

// acquire returns the session once no abandoned RPC is outstanding.
func (t *Transport) acquire(ctx context.Context, op string) (rpcSession, error) {
	t.mu.Lock()
	nc, pending, pendingOp := t.nc, t.pending, t.pendingOp
	t.mu.Unlock()
	if nc == nil {
		return nil, device.NewError(device.KindRPC, t.host, op, device.ErrClosed)
	}
	if pending == nil {
		return nc, nil
	}
	select {
	case <-pending:
		t.mu.Lock()
		if t.pending == pending {
			t.pending, t.pendingOp = nil, ""
		}
		t.mu.Unlock()
		return nc, nil
	case <-ctx.Done():
		return nil, device.NewError(device.KindTimeout, t.host, op,
			fmt.Errorf("%s reply still outstanding: %w", pendingOp, ctx.Err()))
	}
}

func (t *Transport) outstanding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// discard ends the NETCONF session. Junos drops the uncommitted candidate
// and the exclusive lock with it.
func (t *Transport) discard() {
	t.mu.Lock()
	nc := t.nc
	t.nc, t.pending, t.pendingOp, t.discarded = nil, nil, "", true
	t.mu.Unlock()
	if nc != nil {
		if err := nc.Close(); err != nil && !errors.Is(err, io.EOF) {
			util.WithDevice(t.host).Debugf("closing netconf session: %v", err)
		}
	}
}

func (t *Transport) rpcError(op string, err error) error {
	var rpcErr *netconf.RPCError
	if errors.As(err, &rpcErr) {
		kind := device.KindRPC
		if op == "commit-check" {
			kind = device.KindCheck
		}
		return device.NewError(kind, t.host, op, fmt.Errorf("%s", rpcErr.Message))
	}
	return device.NewError(device.ClassifyCallError(err), t.host, op, err)
}

// sshClient returns the port-22 SSH client, dialing it on first use.
func (t *Transport) sshClient() (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	client, err := ssh.Dial("tcp", t.sshAddr, t.sshCfg)
	if err != nil {
		return nil, device.NewError(device.ClassifyDialError(err), t.host, "ssh", err)
	}
	t.client = client
	return client, nil
}

// RunCommand runs an operational command in the device shell and returns
// the raw transcript including the command echo and trailing prompt.
func (t *Transport) RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	client, err := t.sshClient()
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	sh := t.sh
	t.mu.Unlock()
	if sh == nil {
		sh, err = openShell(ctx, client)
		if err != nil {
			return "", device.NewError(device.ClassifyCallError(err), t.host, "shell", err)
		}
		t.mu.Lock()
		t.sh = sh
		t.mu.Unlock()
	}

	out, err := sh.run(ctx, command, timeout)
	if err != nil {
		return out, device.NewError(device.ClassifyCallError(err), t.host, "command", err)
	}
	return out, nil
}

// Call issues a raw RPC and returns the reply body.
func (t *Transport) Call(ctx context.Context, rpc string, timeout time.Duration) (string, error) {
	return t.exec(ctx, "rpc", rpc, timeout)
}

// Upload copies localPath to remotePath with SFTP.
func (t *Transport) Upload(ctx context.Context, localPath, remotePath string) error {
	client, err := t.sshClient()
	if err != nil {
		return err
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		return device.NewError(device.KindRPC, t.host, "upload", err)
	}
	defer sc.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := sc.Create(remotePath)
	if err != nil {
		return device.NewError(device.KindRPC, t.host, "upload", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return device.NewError(device.ClassifyCallError(err), t.host, "upload", err)
	}
	util.WithDevice(t.host).Debugf("uploaded %s to %s (%d bytes)", localPath, remotePath, n)
	return nil
}

func (t *Transport) Lock(ctx context.Context) error {
	_, err := t.exec(ctx, "lock", rpcLock, 0)
	return err
}

// Unlock is a no-op once the session was discarded; the lock ended with it.
func (t *Transport) Unlock(ctx context.Context) error {
	t.mu.Lock()
	discarded := t.discarded
	t.mu.Unlock()
	if discarded {
		return nil
	}
	_, err := t.exec(ctx, "unlock", rpcUnlock, 0)
	return err
}

func (t *Transport) LoadConfig(ctx context.Context, directive, format string) error {
	_, err := t.exec(ctx, "load", loadRPC(directive, format), 0)
	return err
}

func (t *Transport) Diff(ctx context.Context) (string, error) {
	data, err := t.exec(ctx, "diff", rpcDiff, 0)
	if err != nil {
		return "", err
	}
	return parseDiff(data), nil
}

func (t *Transport) CommitCheck(ctx context.Context, timeout time.Duration) error {
	_, err := t.exec(ctx, "commit-check", rpcCommitCheck, timeout)
	return err
}

func (t *Transport) Commit(ctx context.Context, opts device.CommitOptions) (string, error) {
	data, err := t.exec(ctx, "commit", commitRPC(opts), opts.Timeout)
	if err != nil {
		return "", err
	}
	if ack := elementText(data, "message"); ack != "" {
		return ack, nil
	}
	return "commit complete", nil
}

// Rollback discards the candidate. If the device is still busy with an
// earlier RPC when ctx runs out, the session is closed instead and the
// error wraps device.ErrCandidateDiscarded.
func (t *Transport) Rollback(ctx context.Context) error {
	_, err := t.exec(ctx, "rollback", rpcRollback, 0)
	if err == nil || !t.outstanding() {
		return err
	}
	util.WithDevice(t.host).Warnf("rollback not delivered (%v), closing the netconf session", err)
	t.discard()
	return device.NewError(device.KindRPC, t.host, "rollback", device.ErrCandidateDiscarded)
}

func (t *Transport) Facts(ctx context.Context) (device.Facts, error) {
	data, err := t.exec(ctx, "facts", rpcSoftwareInfo, 0)
	if err != nil {
		return device.Facts{}, err
	}
	f := parseSoftwareInfo(data)
	if f.Hostname == "" {
		f.Hostname = t.host
	}
	return f, nil
}
