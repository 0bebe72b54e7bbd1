package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. Operators watch stderr while the
// console sink owns stdout.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(textFormatter())
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
}

// SetLogLevel parses a logrus level name ("debug", "warn", ...).
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

func SetLogOutput(w io.Writer) { Logger.SetOutput(w) }

// SetJSONFormat switches to one JSON object per line, for log shippers.
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
}

// WithDevice tags entries with the switch being worked on.
func WithDevice(host string) *logrus.Entry {
	return Logger.WithField("device", host)
}

// WithOperation tags entries with the run operation (show, config, install, ...).
func WithOperation(operation string) *logrus.Entry {
	return Logger.WithField("operation", operation)
}

// WithRun tags entries with a run identifier and its operation.
func WithRun(runID, operation string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"run": runID, "operation": operation})
}

func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }
