// Fireblade - Junos fleet operations
//
// Every command runs one operation across a device list, a bounded number
// of devices at a time, and prints one line per device followed by a
// summary:
//
//	fireblade -f hosts.txt show "show version"
//	fireblade -f hosts.txt --role core config -D changes.set -x
//	fireblade vlan-flip matrix.csv --confirm 5
//	fireblade -f hosts.txt install --p jinstall-p.tgz --mp jinstall-mp.tgz --action 26102002
//	fireblade run -r request.yaml
//
// Configuration commands check and roll back by default; use -x to commit.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/audit"
	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/settings"
	"github.com/fireblade-network/fireblade/pkg/util"
	"github.com/fireblade-network/fireblade/pkg/version"
)

var (
	// Device selection
	deviceList []string // -d, --device
	deviceFile string   // -f, --file
	campus     string
	role       string
	model      string

	// Session options
	username    string
	port        int
	concurrency int

	// Output options
	verbose      bool
	logJSON      bool
	noColor      bool
	printPayload bool
	logDir       string
	summaryFile  string

	// Global state
	userSettings *settings.Settings
	auditLogger  *audit.FileLogger
)

// errDeviceFailures makes the process exit non-zero after a run with
// failed devices; the report has already been printed.
var errDeviceFailures = errors.New("some devices failed")

func main() {
	err := rootCmd.Execute()
	if auditLogger != nil {
		auditLogger.Close()
	}
	if err != nil {
		if !errors.Is(err, errDeviceFailures) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "fireblade",
	Short:             "Junos fleet operations",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Fireblade runs show commands, configuration changes, firmware installs
and snapshots across many Junos switches at once.

Devices come from -d and -f and can be narrowed by campus, role and model.
Configuration commands check and roll back by default; use -x to commit.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if logJSON {
			util.SetJSONFormat()
		}
		if noColor {
			cli.SetColor(false)
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if isSettingsOrHelp(cmd) {
			return nil
		}

		auditPath := userSettings.AuditLog
		if auditPath == "" {
			auditPath = filepath.Join(filepath.Dir(settings.DefaultSettingsPath()), "audit.log")
		}
		auditLogger, err = audit.NewFileLogger(auditPath, audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 10,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
			auditLogger = nil
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVarP(&deviceList, "device", "d", nil, "Device host name (repeatable, comma-separated)")
	flags.StringVarP(&deviceFile, "file", "f", "", "File with one device per line")
	flags.StringVar(&campus, "campus", "", "Only act on these campuses (comma-separated, default any)")
	flags.StringVar(&role, "role", "", "Only act on these roles (comma-separated, default any)")
	flags.StringVar(&model, "model", "", "Only act on these chassis models (comma-separated, default any)")

	flags.StringVarP(&username, "user", "u", "", "Login user (default from settings or $FIREBLADE_USER)")
	flags.IntVar(&port, "port", 0, "NETCONF port (default from settings, 830)")
	flags.IntVarP(&concurrency, "concurrency", "c", 0, "Devices worked on at once (default from settings, 50)")

	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&logJSON, "log-json", false, "Log in JSON")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&printPayload, "print", "p", false, "Print diffs and command output per device")
	flags.StringVar(&logDir, "log-dir", "", "Write one log file per device to this directory")
	flags.StringVar(&summaryFile, "summary", "", "Append a CSV summary line per device to this file")

	rootCmd.AddGroup(
		&cobra.Group{ID: "read", Title: "Read Operations:"},
		&cobra.Group{ID: "write", Title: "Write Operations:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{showCmd, probeCmd} {
		cmd.GroupID = "read"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{configCmd, vlanFlipCmd, installCmd, snapshotCmd, runCmd} {
		cmd.GroupID = "write"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("fireblade dev build (use 'make build' for version info)")
		} else {
			fmt.Printf("fireblade %s\n", version.Info())
		}
	},
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}
