package main

import (
	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/fireblade"
)

var directiveFile string

var configCmd = &cobra.Command{
	Use:   "config [directive...]",
	Short: "Apply configuration directives",
	Long: `Apply "set" and "delete" directives, in order, on every device.

Each device is locked, loaded, diffed and commit-checked. Without -x the
candidate is then rolled back. A device whose diff is empty reports
no-difference and nothing is committed.

Examples:
  fireblade -f hosts.txt config "set system ntp server 10.0.0.1"
  fireblade -f hosts.txt --role core config -D ntp.set -x
  fireblade -f hosts.txt config -D ntp.set --confirm 5
  fireblade -f hosts.txt config -D ntp.set --at "2026-10-20 02:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := changeMode()
		if err != nil {
			return err
		}
		req := newRequest(fireblade.OpConfig)
		req.Directives = args
		req.DirectiveFile = directiveFile
		req.Mode = mode
		req.ConfirmMinutes = confirmMinutes
		req.At = commitAt
		return execute(req)
	},
}

var vlanFlipCmd = &cobra.Command{
	Use:   "vlan-flip <matrix-file>",
	Short: "Move interfaces between VLANs from a change matrix",
	Long: `Apply a VLAN change matrix. Each line is

  host,interface,old-vlan,new-vlan

and becomes a delete of the old membership followed by a set of the new
one. Devices are taken from the matrix unless -d or -f is given.
Duplicate lines are applied once; malformed lines are skipped with a
warning.

Examples:
  fireblade vlan-flip matrix.csv
  fireblade vlan-flip matrix.csv -x`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := changeMode()
		if err != nil {
			return err
		}
		req := newRequest(fireblade.OpVLANFlip)
		req.MatrixFile = args[0]
		req.Mode = mode
		req.ConfirmMinutes = confirmMinutes
		req.At = commitAt
		return execute(req)
	},
}

func init() {
	configCmd.Flags().StringVarP(&directiveFile, "directives-file", "D", "", "File with one directive per line")
	addChangeFlags(configCmd)
	addChangeFlags(vlanFlipCmd)
}
