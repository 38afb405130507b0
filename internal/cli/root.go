package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the contentsync command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contentsync",
		Short: "Bidirectional blog content sync between a table store and a spreadsheet",
		Long: `contentsync keeps one catalog of blog posts consistent across store A
(an Airtable table) and store B (a Google Sheets spreadsheet). Records are
matched by title and primary keyword; conflicts are settled by a policy.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewSyncBidirectionalCommand())
	rootCmd.AddCommand(NewSyncAToBCommand())
	rootCmd.AddCommand(NewSyncBToACommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
