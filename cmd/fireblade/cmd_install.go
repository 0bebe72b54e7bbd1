package main

import (
	"github.com/spf13/cobra"

	"github.com/fireblade-network/fireblade/pkg/fireblade"
	"github.com/fireblade-network/fireblade/pkg/fireblade/install"
)

var (
	packageP      string
	packageMP     string
	installAction string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install Junos packages",
	Long: `Copy the Junos package for each chassis to /var/tmp and install it.

EX4300-48P chassis get --p, EX4300-48MP chassis get --mp, mixed chassis
get both. Other hardware is skipped.

After installing, --action decides what happens next:
  rollback   roll the package back (default; a rehearsal)
  now        reboot immediately
  yymmddhh   reboot at that hour plus a random 0-20 minute offset

Examples:
  fireblade -f hosts.txt install --p jinstall-p.tgz --mp jinstall-mp.tgz
  fireblade -f hosts.txt install --p jinstall-p.tgz --mp jinstall-mp.tgz --action 26102002`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newRequest(fireblade.OpInstall)
		req.Packages = install.Packages{P: packageP, MP: packageMP}
		req.InstallAction = installAction
		return execute(req)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the alternate boot slice on EX4300-48P members",
	Long: `Write a system snapshot to the alternate slice and report the snapshot
state. EX4300-48P chassis are written all at once; mixed chassis member by
member for their EX4300-48P members. Other chassis are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(newRequest(fireblade.OpSnapshot))
	},
}

func init() {
	installCmd.Flags().StringVar(&packageP, "p", "", "Package for EX4300-48P")
	installCmd.Flags().StringVar(&packageMP, "mp", "", "Package for EX4300-48MP")
	installCmd.Flags().StringVar(&installAction, "action", install.ActionRollback, "Post-install action: rollback, now or yymmddhh")
}
