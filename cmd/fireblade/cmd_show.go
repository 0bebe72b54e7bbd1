package main

import (
	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/fireblade"
)

var showCommandFile string

var showCmd = &cobra.Command{
	Use:   "show [command...]",
	Short: "Run operational commands and collect the output",
	Long: `Run operational commands on every device, in order, and print the output.

Commands are taken from the arguments and from --commands-file (one per
line). Output interrupted by a syslog broadcast is reported as a protocol
error and the remaining commands for that device are not sent.

Examples:
  fireblade -f hosts.txt show "show version" "show chassis hardware"
  fireblade -d bby-core-1 show -C checks.txt --summary run.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newRequest(fireblade.OpShow)
		req.Commands = args
		req.CommandFile = showCommandFile
		return execute(req)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report hostname, chassis model, role and campus",
	Long: `Classify every device and print one line per device:

  hostname,model,role,campus,members

Role and campus come from the host name; the chassis model from the
virtual-chassis members (EX4300-48P, EX4300-48MP, or mixed).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printPayload = true
		return execute(newRequest(fireblade.OpProbe))
	},
}

func init() {
	showCmd.Flags().StringVarP(&showCommandFile, "commands-file", "C", "", "File with one command per line")
}
