package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the sas7bdat version.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sas7bdat v%s\n", version)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "SAS7BDAT metadata and data extraction")
		},
	}
}
