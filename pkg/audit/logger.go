package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// backupStamp sorts lexically in rotation order.
const backupStamp = "20060102-150405.000000000"

// maxEventLine bounds one encoded event; diffs and command output can be large.
const maxEventLine = 16 << 20

// Logger is an audit backend.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// RotationConfig bounds the trail on disk.
type RotationConfig struct {
	MaxSize    int64 // bytes in the live file before it is rotated
	MaxBackups int   // rotated files kept; 0 keeps all
}

// FileLogger appends events as JSON lines and rotates by size.
// Query reads the rotated backups as well as the live file.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.RWMutex
	file *os.File
	enc  *json.Encoder
}

// NewFileLogger opens (creating if needed) the trail at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.enc = json.NewEncoder(f)
	return nil
}

// Log appends one event, rotating first when the live file is full.
func (l *FileLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if l.full() {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	return l.enc.Encode(event)
}

func (l *FileLogger) full() bool {
	if l.rotation.MaxSize <= 0 {
		return false
	}
	info, err := l.file.Stat()
	return err == nil && info.Size() >= l.rotation.MaxSize
}

// Query returns matching events oldest first, then applies Offset and Limit.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	files := append(l.backups(), l.path)

	var events []*Event
	for _, path := range files {
		err := scanEvents(path, func(e *Event) {
			if filter.Matches(e) {
				events = append(events, e)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return filter.page(events), nil
}

func scanEvents(path string, fn func(*Event)) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for line := 1; sc.Scan(); line++ {
		e := new(Event)
		if err := json.Unmarshal(sc.Bytes(), e); err != nil {
			util.Warnf("audit: %s:%d: skipping malformed entry: %v", filepath.Base(path), line, err)
			continue
		}
		fn(e)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// Close closes the live file. Further Log calls fail.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.enc = nil, nil
	return err
}

func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+"."+time.Now().Format(backupStamp)); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}
	l.prune()
	return nil
}

// backups lists rotated files oldest first.
func (l *FileLogger) backups() []string {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func (l *FileLogger) prune() {
	keep := l.rotation.MaxBackups
	if keep <= 0 {
		return
	}
	old := l.backups()
	for len(old) > keep {
		if err := os.Remove(old[0]); err != nil {
			util.Warnf("audit: removing %s: %v", old[0], err)
		}
		old = old[1:]
	}
}

// Sink records each outcome of a run in a Logger.
type Sink struct {
	Logger    Logger
	User      string
	Operation string
	RunID     string
	Execute   bool
}

func (s *Sink) Write(o outcome.Outcome) error {
	return s.Logger.Log(FromOutcome(s.User, s.Operation, o).WithRun(s.RunID).WithExecuteMode(s.Execute))
}

// atomic.Value needs one concrete type, nil included.
type loggerHolder struct{ logger Logger }

var defaultLogger atomic.Value

// SetDefaultLogger installs the process-wide logger; nil disables it.
func SetDefaultLogger(logger Logger) {
	defaultLogger.Store(loggerHolder{logger})
}

func current() Logger {
	if h, ok := defaultLogger.Load().(loggerHolder); ok {
		return h.logger
	}
	return nil
}

// Log writes to the default logger, if any.
func Log(event *Event) error {
	if l := current(); l != nil {
		return l.Log(event)
	}
	return nil
}

// Query reads from the default logger, if any.
func Query(filter Filter) ([]*Event, error) {
	if l := current(); l != nil {
		return l.Query(filter)
	}
	return []*Event{}, nil
}
