package fireblade

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

// ConsoleSink prints one line per outcome as it arrives. With Verbose the
// diff and command output follow, indented.
type ConsoleSink struct {
	W       io.Writer
	Verbose bool
}

func (s *ConsoleSink) Write(o outcome.Outcome) error {
	line := cli.DotPad(o.Device, 40) + " " + colorCategory(o.Category)
	if o.Detail != "" {
		line += " " + cli.Dim(o.Detail)
	}
	if _, err := fmt.Fprintln(s.W, line); err != nil {
		return err
	}
	if !s.Verbose {
		return nil
	}
	payload := strings.TrimRight(o.Payload(), "\n")
	if payload == "" {
		return nil
	}
	_, err := fmt.Fprintln(s.W, "    "+strings.ReplaceAll(payload, "\n", "\n    "))
	return err
}

// CSVHeader is the first row of a new summary file.
var CSVHeader = []string{"timestamp", "host", "category", "detail"}

// CSVSink appends one row per outcome to a summary file.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// OpenCSVSink opens path for appending, writing the header if the file is
// new.
func OpenCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating summary directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening summary file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat summary file: %w", err)
	}

	s := &CSVSink{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := s.writeRow(CSVHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) Write(o outcome.Outcome) error {
	return s.writeRow([]string{
		o.At.Format(time.RFC3339),
		o.Device,
		string(o.Category),
		o.Detail,
	})
}

func (s *CSVSink) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}

// DeviceLogSink appends each outcome to a per-device file
// <Dir>/<host>-<operation>-<yyyy-mm-dd>.log.
type DeviceLogSink struct {
	Dir       string
	Operation string
	Now       func() time.Time
}

// Path returns the log file for host.
func (s *DeviceLogSink) Path(host string) string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	name := fmt.Sprintf("%s-%s-%s.log", host, s.Operation, now().Format("2006-01-02"))
	return filepath.Join(s.Dir, name)
}

func (s *DeviceLogSink) Write(o outcome.Outcome) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(o.Device), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening device log: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", o.At.Format(time.RFC3339), o.Device, o.Category)
	if o.Detail != "" {
		sb.WriteString(": " + o.Detail)
	}
	sb.WriteString("\n")
	if payload := o.Payload(); payload != "" {
		sb.WriteString(payload)
		if !strings.HasSuffix(payload, "\n") {
			sb.WriteString("\n")
		}
	}
	_, err = f.WriteString(sb.String())
	return err
}
