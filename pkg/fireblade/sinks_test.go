package fireblade

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

var errUnreachable = device.NewError(device.KindConnect, "bby-core-2", "open", errors.New("no route to host"))

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "summary.csv")

	for i := 0; i < 2; i++ {
		s, err := OpenCSVSink(path)
		if err != nil {
			t.Fatalf("OpenCSVSink() error = %v", err)
		}
		if err := s.Write(outcome.NewProtocolError("a", "syntax error, line 1")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(CSVHeader, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "a" || rows[1][2] != "protocol-error" || rows[1][3] != "syntax error, line 1" {
		t.Errorf("row = %v", rows[1])
	}
	if _, err := time.Parse(time.RFC3339, rows[1][0]); err != nil {
		t.Errorf("timestamp %q: %v", rows[1][0], err)
	}
}

func TestDeviceLogSink(t *testing.T) {
	dir := t.TempDir()
	s := &DeviceLogSink{
		Dir:       dir,
		Operation: "show",
		Now:       func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) },
	}
	want := filepath.Join(dir, "bby-core-1-show-2026-05-04.log")
	if got := s.Path("bby-core-1"); got != want {
		t.Errorf("Path() = %s, want %s", got, want)
	}

	if err := s.Write(outcome.NewCommandOutput("bby-core-1", "Hostname: bby-core-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(outcome.NewSkipped("bby-core-1", "campus mismatch")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "command-output\nHostname: bby-core-1\n") {
		t.Errorf("log missing output:\n%s", text)
	}
	if !strings.Contains(text, "skipped: campus mismatch") {
		t.Errorf("log missing second entry:\n%s", text)
	}
}

func TestConsoleSink(t *testing.T) {
	prev := cli.ColorEnabled()
	cli.SetColor(false)
	defer cli.SetColor(prev)

	var buf bytes.Buffer
	s := &ConsoleSink{W: &buf, Verbose: true}
	if err := s.Write(outcome.NewRolledBack("bby-core-1", "+ set x\n- set y\n")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "bby-core-1 ....") {
		t.Errorf("line should start with padded device: %q", out)
	}
	if !strings.Contains(out, "rolled-back") || !strings.Contains(out, "    + set x\n    - set y\n") {
		t.Errorf("verbose output = %q", out)
	}

	buf.Reset()
	s.Verbose = false
	s.Write(outcome.NewRolledBack("bby-core-1", "+ set x"))
	if strings.Contains(buf.String(), "set x") {
		t.Error("payload should only print when verbose")
	}
}
