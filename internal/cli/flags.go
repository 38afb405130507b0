package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $XDG_CONFIG_HOME/contentsync/config.yaml)",
	)
	cmd.PersistentFlags().StringVarP(
		&globalFlags.Output,
		"output",
		"o",
		"",
		"output format: human, json (overrides output.format)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"debug logging",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// SyncFlags holds the flags shared by the sync commands
type SyncFlags struct {
	Policy     string
	Direction  string
	Comparison string
	BatchSize  int
	Delay      string
	DryRun     bool
}

func addSyncFlags(cmd *cobra.Command, f *SyncFlags) {
	cmd.Flags().StringVar(&f.Policy, "policy", "", "conflict policy: a-wins, b-wins, newest-wins")
	cmd.Flags().StringVar(&f.Direction, "direction", "", "stores allowed to receive writes: both, a-to-b, b-to-a")
	cmd.Flags().StringVar(&f.Comparison, "comparison", "", "payload comparison: fields, hash")
	cmd.Flags().IntVar(&f.BatchSize, "batch-size", 0, "records per batch window")
	cmd.Flags().StringVar(&f.Delay, "delay", "", "pause between batch windows (e.g. \"1s\")")
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "plan writes without issuing them")
}
