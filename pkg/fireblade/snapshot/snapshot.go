// Package snapshot writes the running Junos image to the alternate boot
// slice of EX4300-48P members.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/command"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

const (
	DefaultWriteTimeout = 1200 * time.Second
	DefaultShowTimeout  = 180 * time.Second
)

// Task writes snapshots on one device.
type Task struct {
	WriteTimeout time.Duration
	ShowTimeout  time.Duration
}

func (t *Task) Name() string     { return "snapshot" }
func (t *Task) NeedsFacts() bool { return true }

// Commands returns the write and show commands for a chassis, or nil when
// the chassis has no EX4300-48P member.
func Commands(facts device.Facts) (write, show []string) {
	switch facts.Model {
	case device.ModelEX4300P:
		return []string{"request system snapshot all-members slice alternate"},
			[]string{"show system snapshot all-members media internal"}
	case device.ModelMixed:
		for _, id := range facts.MemberIDs(device.ModelEX4300P) {
			write = append(write, fmt.Sprintf("request system snapshot member %s slice alternate", id))
			show = append(show, fmt.Sprintf("show system snapshot member %s media internal", id))
		}
	}
	return write, show
}

// Run writes the snapshots member by member, then reports the partitions.
func (t *Task) Run(ctx context.Context, s *device.Session) outcome.Outcome {
	host := s.Host
	start := time.Now()

	facts, err := s.Facts(ctx)
	if err != nil {
		return outcome.FromError(host, err)
	}
	write, show := Commands(facts)
	if len(write) == 0 {
		return outcome.NewSkipped(host, fmt.Sprintf("%s does not contain any %s members", host, device.ModelEX4300P))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Start: %s\n", start.Format("2006-01-02 15:04"))
	if facts.Model == device.ModelMixed {
		fmt.Fprintf(&sb, "Mixed chassis with %d %s members\n", len(write), device.ModelEX4300P)
	} else {
		fmt.Fprintf(&sb, "%s chassis with %d members\n", device.ModelEX4300P, len(facts.Members))
	}

	writer := &command.Executor{Host: host, Timeout: orDefault(t.WriteTimeout, DefaultWriteTimeout)}
	text, err := writer.Run(ctx, s, write)
	sb.WriteString(text)
	if err != nil {
		return outcome.FromError(host, err).WithOutput(sb.String())
	}

	reader := &command.Executor{Host: host, Timeout: orDefault(t.ShowTimeout, DefaultShowTimeout)}
	text, err = reader.Run(ctx, s, show)
	sb.WriteString("\n" + text)
	if err != nil {
		return outcome.FromError(host, err).WithOutput(sb.String())
	}
	fmt.Fprintf(&sb, "\nEnd: %s\n", time.Now().Format("2006-01-02 15:04"))

	o := outcome.NewCommandOutput(host, sb.String())
	o.Detail = fmt.Sprintf("snapshot written on %d target(s)", len(write))
	return o
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
