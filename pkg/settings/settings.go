// Package settings manages persistent user settings for the fireblade CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults applied when a setting is unset.
const (
	DefaultConcurrency = 50
	DefaultPort        = 830
	DefaultLogDir      = "logs"
)

// Settings holds persistent user preferences
type Settings struct {
	// Username is the login used when none is given on the command line
	Username string `json:"username,omitempty"`

	// Port is the NETCONF port
	Port int `json:"port,omitempty"`

	// Concurrency is the default number of devices worked on at once
	Concurrency int `json:"concurrency,omitempty"`

	// LogDir receives per-device log files
	LogDir string `json:"log_dir,omitempty"`

	// AuditLog is the JSON-lines audit trail path
	AuditLog string `json:"audit_log,omitempty"`

	// RedisAddr, when set, receives one stream entry per device outcome
	RedisAddr string `json:"redis_addr,omitempty"`

	// MetricsFile, when set, receives a Prometheus textfile after each run
	MetricsFile string `json:"metrics_file,omitempty"`
}

// Keys lists the names accepted by Set, in display order.
var Keys = []string{"username", "port", "concurrency", "log_dir", "audit_log", "redis_addr", "metrics_file"}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fireblade_settings.json"
	}
	return filepath.Join(home, ".fireblade", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Set assigns one setting by key.
func (s *Settings) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "username":
		s.Username = value
	case "port", "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		if key == "port" {
			s.Port = n
		} else {
			s.Concurrency = n
		}
	case "log_dir":
		s.LogDir = value
	case "audit_log":
		s.AuditLog = value
	case "redis_addr":
		s.RedisAddr = value
	case "metrics_file":
		s.MetricsFile = value
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Unset returns one key to its default.
func (s *Settings) Unset(key string) error {
	switch key {
	case "username":
		s.Username = ""
	case "port":
		s.Port = 0
	case "concurrency":
		s.Concurrency = 0
	case "log_dir":
		s.LogDir = ""
	case "audit_log":
		s.AuditLog = ""
	case "redis_addr":
		s.RedisAddr = ""
	case "metrics_file":
		s.MetricsFile = ""
	default:
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// IsDefault reports whether key is unset, so Get shows a fallback.
func (s *Settings) IsDefault(key string) bool {
	probe := *s
	if err := probe.Unset(key); err != nil {
		return false
	}
	return probe == *s
}

// Get returns one setting by key, formatted for display.
func (s *Settings) Get(key string) string {
	switch key {
	case "username":
		return s.Username
	case "port":
		return strconv.Itoa(s.GetPort())
	case "concurrency":
		return strconv.Itoa(s.GetConcurrency())
	case "log_dir":
		return s.GetLogDir()
	case "audit_log":
		return s.AuditLog
	case "redis_addr":
		return s.RedisAddr
	case "metrics_file":
		return s.MetricsFile
	}
	return ""
}

// GetPort returns the NETCONF port (with fallback)
func (s *Settings) GetPort() int {
	if s.Port > 0 {
		return s.Port
	}
	return DefaultPort
}

// GetConcurrency returns the concurrency limit (with fallback)
func (s *Settings) GetConcurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return DefaultConcurrency
}

// GetLogDir returns the per-device log directory (with fallback)
func (s *Settings) GetLogDir() string {
	if s.LogDir != "" {
		return s.LogDir
	}
	return DefaultLogDir
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
