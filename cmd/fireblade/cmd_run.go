package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/fireblade"
)

var requestFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a request file",
	Long: `Run an operation described in a YAML request file.

Example request:

  operation: config
  device_file: hosts.txt
  filter:
    campus: bby
    role: core,ext
  directives:
    - set system ntp server 10.0.0.1
  mode: commit-confirmed
  confirm_minutes: 5
  concurrency: 20
  timeouts:
    check: 10m

Device flags (-d, -f) add to the devices in the file; filter flags
override the file's filter when given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if requestFile == "" {
			return fmt.Errorf("request file required: use -r <file>")
		}
		req, err := fireblade.LoadRequest(requestFile)
		if err != nil {
			return err
		}

		req.Devices = append(req.Devices, deviceList...)
		if deviceFile != "" && req.DeviceFile == "" {
			req.DeviceFile = deviceFile
		}
		if campus != "" {
			req.Filter.Campus = campus
		}
		if role != "" {
			req.Filter.Role = role
		}
		if model != "" {
			req.Filter.Model = model
		}
		if username != "" {
			req.Username = username
		}
		if port != 0 {
			req.Port = port
		}
		if concurrency != 0 {
			req.Concurrency = concurrency
		}
		if logDir != "" {
			req.LogDir = logDir
		}
		if summaryFile != "" {
			req.SummaryFile = summaryFile
		}
		applySettings(req)
		return execute(req)
	},
}

func init() {
	runCmd.Flags().StringVarP(&requestFile, "request", "r", "", "YAML request file")
}
