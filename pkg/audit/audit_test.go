package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "bby-brh7046-ext-1", "config")

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Device != "bby-brh7046-ext-1" {
		t.Errorf("Device = %q", event.Device)
	}
	if event.Operation != "config" {
		t.Errorf("Operation = %q", event.Operation)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_FromOutcome(t *testing.T) {
	o := outcome.NewCommitted("sw1", "+ set x", "commit complete")
	o.Duration = 3 * time.Second

	event := FromOutcome("alice", "config", o).WithRun("run-1").WithExecuteMode(true)

	if event.Category != outcome.Committed || !event.Success {
		t.Errorf("Category = %s, Success = %v", event.Category, event.Success)
	}
	if event.Diff != "+ set x" || event.Output != "commit complete" {
		t.Errorf("payload not carried: %+v", event)
	}
	if !event.Timestamp.Equal(o.At) {
		t.Errorf("Timestamp = %v, want outcome time %v", event.Timestamp, o.At)
	}
	if event.RunID != "run-1" || !event.Execute || event.Duration != 3*time.Second {
		t.Errorf("event = %+v", event)
	}

	failed := FromOutcome("alice", "config", outcome.NewProtocolError("sw2", "rpc error"))
	if failed.Success {
		t.Error("protocol error should not be a success")
	}
}

func newLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestFileLogger_Basic(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})

	event := FromOutcome("alice", "show", outcome.NewCommandOutput("sw1", "JUNOS 21.4R3"))
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Device != "sw1" || events[0].Output != "JUNOS 21.4R3" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})

	outcomes := []outcome.Outcome{
		outcome.NewCommitted("sw1", "+ a", "ok"),
		outcome.NewNoDifference("sw2"),
		outcome.FromError("sw3", os.ErrDeadlineExceeded),
		outcome.NewCommitted("sw4", "+ b", "ok"),
	}
	for i, o := range outcomes {
		user := "alice"
		if i == 3 {
			user = "bob"
		}
		if err := logger.Log(FromOutcome(user, "config", o).WithRun("r1")); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"device", Filter{Device: "sw2"}, 1},
		{"user", Filter{User: "bob"}, 1},
		{"category", Filter{Category: outcome.Committed}, 2},
		{"run", Filter{RunID: "r1"}, 4},
		{"other run", Filter{RunID: "r2"}, 0},
		{"operation", Filter{Operation: "show"}, 0},
		{"success only", Filter{SuccessOnly: true}, 3},
		{"failure only", Filter{FailureOnly: true}, 1},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond", Filter{Offset: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("Expected %d events, got %d", tt.want, len(results))
			}
		})
	}
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})

	old := NewEvent("alice", "sw1", "config")
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	logger.Log(old)
	logger.Log(NewEvent("alice", "sw2", "config"))

	results, _ := logger.Query(Filter{StartTime: time.Now().Add(-time.Hour)})
	if len(results) != 1 || results[0].Device != "sw2" {
		t.Errorf("StartTime filter = %v", results)
	}
	results, _ = logger.Query(Filter{EndTime: time.Now().Add(-time.Hour)})
	if len(results) != 1 || results[0].Device != "sw1" {
		t.Errorf("EndTime filter = %v", results)
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{})
	logger.Log(NewEvent("alice", "sw1", "show"))

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.WriteString("{not json\n")
	f.Close()
	logger.Log(NewEvent("alice", "sw2", "show"))

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected malformed line to be skipped, got %d events", len(results))
	}
}

func TestFileLogger_QueryNonExistent(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{})
	os.Remove(logPath)

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Errorf("Query should not error for missing file: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 events, got %d", len(results))
	}
}

func TestFileLogger_Sink(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})
	sink := &Sink{Logger: logger, User: "alice", Operation: "vlan-flip", RunID: "r9"}

	if err := sink.Write(outcome.NewRolledBack("sw1", "+ x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	results, _ := logger.Query(Filter{RunID: "r9"})
	if len(results) != 1 || results[0].Operation != "vlan-flip" || results[0].Execute {
		t.Errorf("results = %+v", results)
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)

	if err := Log(NewEvent("test", "test", "test")); err != nil {
		t.Errorf("Log with nil default should not error: %v", err)
	}
	results, err := Query(Filter{})
	if err != nil || len(results) != 0 {
		t.Errorf("Query with nil default = %v, %v", results, err)
	}

	logger, _ := newLogger(t, RotationConfig{})
	SetDefaultLogger(logger)
	defer SetDefaultLogger(nil)

	if err := Log(NewEvent("alice", "sw1", "show")); err != nil {
		t.Errorf("Log failed: %v", err)
	}
	results, err = Query(Filter{})
	if err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestFileLogger_LogRotation(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{MaxSize: 100, MaxBackups: 2})

	for i := 0; i < 5; i++ {
		if err := logger.Log(NewEvent("alice", "sw1", "config")); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(logPath + ".*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("Expected rotation to create backup files")
	}
	if len(matches) > 2 {
		t.Errorf("Expected at most 2 backup files, got %d", len(matches))
	}
}

func TestFileLogger_NewFileLoggerErrors(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when directory creation fails")
	}

	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := os.Mkdir(logPath, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if _, err := NewFileLogger(logPath, RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when log path is a directory")
	}
}

func TestFileLogger_CloseNilFile(t *testing.T) {
	logger := &FileLogger{path: "/tmp/test.log"}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() with nil file should not error: %v", err)
	}
}

func TestFileLogger_QuerySpansBackups(t *testing.T) {
	logger, logPath := newLogger(t, RotationConfig{MaxSize: 100})

	hosts := []string{"sw1", "sw2", "sw3", "sw4"}
	for _, h := range hosts {
		if err := logger.Log(NewEvent("alice", h, "config")); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if matches, _ := filepath.Glob(logPath + ".*"); len(matches) == 0 {
		t.Fatal("expected rotated backups")
	}

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != len(hosts) {
		t.Fatalf("Expected %d events across backups, got %d", len(hosts), len(results))
	}
	for i, h := range hosts {
		if results[i].Device != h {
			t.Errorf("results[%d].Device = %q, want %q", i, results[i].Device, h)
		}
	}
}

func TestFileLogger_LargeEvent(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})

	big := make([]byte, 256*1024)
	for i := range big {
		big[i] = 'x'
	}
	o := outcome.NewCommandOutput("sw1", string(big))
	if err := logger.Log(FromOutcome("alice", "show", o)); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || len(results[0].Output) != len(big) {
		t.Errorf("large output not read back intact")
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	logger, _ := newLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}
	if err := logger.Log(NewEvent("alice", "sw1", "show")); err == nil {
		t.Error("Log after Close should fail")
	}
}
