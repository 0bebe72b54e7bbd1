// Package command runs read-only operational commands on a device.
package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// DefaultTimeout bounds a single command.
const DefaultTimeout = 600 * time.Second

// syslogLine matches an asynchronous syslog broadcast written into the
// shell session in the middle of command output.
var syslogLine = regexp.MustCompile(`^\s*Message from syslogd@`)

// Runner is the part of a session the executor needs.
type Runner interface {
	RunCommand(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// Executor issues commands strictly in order and concatenates their output.
type Executor struct {
	Host    string
	Timeout time.Duration
}

// Run executes commands in order. It stops at the first failure or corrupted
// output and returns the text collected up to that point with the error.
// Corruption is reported as a device.Error of KindCorrupt.
func (e *Executor) Run(ctx context.Context, r Runner, commands []string) (string, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var parts []string
	for _, cmd := range commands {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		util.WithDevice(e.Host).Debugf("command: %s", cmd)

		raw, err := r.RunCommand(ctx, cmd, timeout)
		if err != nil {
			return strings.Join(parts, "\n"), err
		}
		body, ok := Clean(raw)
		if !ok {
			return strings.Join(parts, "\n"), device.NewError(device.KindCorrupt, e.Host, "command",
				fmt.Errorf("output of %q is corrupted by syslog message", cmd))
		}
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n"), nil
}

// Execute runs commands and returns the outcome: CommandOutput on success,
// otherwise the mapped error carrying whatever output was collected.
func (e *Executor) Execute(ctx context.Context, r Runner, commands []string) outcome.Outcome {
	text, err := e.Run(ctx, r, commands)
	if err != nil {
		return outcome.FromError(e.Host, err).WithOutput(text)
	}
	return outcome.NewCommandOutput(e.Host, text)
}

// Clean drops the command echo (first line) and the trailing prompt (last
// line) from raw shell output. It returns false when the output is too
// short to carry that framing or contains a syslog broadcast.
func Clean(raw string) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return "", false
	}
	lines = lines[1 : len(lines)-1]
	for _, l := range lines {
		if syslogLine.MatchString(l) {
			return "", false
		}
	}
	return strings.Join(lines, "\n"), true
}
