package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage defaults stored in ~/.fireblade/settings.json.

  username      login user when -u is not given
  port          NETCONF port (830)
  concurrency   devices worked on at once (50)
  log_dir       per-device log directory (logs)
  audit_log     JSON-lines audit trail (~/.fireblade/audit.log)
  redis_addr    publish every outcome to this Redis
  metrics_file  write a Prometheus textfile after each run

Examples:
  fireblade settings show
  fireblade settings set username netops
  fireblade settings set concurrency 100
  fireblade settings unset redis_addr`,
}

// editSettings loads, applies fn, and saves.
func editSettings(fn func(*settings.Settings) error) (*settings.Settings, error) {
	s, err := settings.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := s.Save(); err != nil {
		return nil, fmt.Errorf("saving settings: %w", err)
	}
	return s, nil
}

func displayValue(s *settings.Settings, key string) string {
	v := s.Get(key)
	switch {
	case v == "":
		return "(not set)"
	case s.IsDefault(key):
		return v + " (default)"
	}
	return v
}

func validKey(key string) error {
	for _, k := range settings.Keys {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("unknown setting %q, see 'fireblade settings show'", key)
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		fmt.Printf("%s\n\n", cli.Dim(settings.DefaultSettingsPath()))
		t := cli.NewTable("SETTING", "VALUE")
		for _, key := range settings.Keys {
			t.Row(key, displayValue(s, key))
		}
		t.Flush()
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validKey(args[0]); err != nil {
			return err
		}
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		fmt.Println(displayValue(s, args[0]))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := editSettings(func(s *settings.Settings) error { return s.Set(args[0], args[1]) })
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], s.Get(args[0]))
		return nil
	},
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <setting>",
	Short: "Return one setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := editSettings(func(s *settings.Settings) error { return s.Unset(args[0]) })
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], displayValue(s, args[0]))
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Return every setting to its default",
	RunE: func(cmd *cobra.Command, args []string) error {
		// a broken file is cleared too, so this does not load first
		if err := (&settings.Settings{}).Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsGetCmd, settingsSetCmd, settingsUnsetCmd,
		settingsClearCmd, settingsPathCmd)
}
