// Package cli provides the command-line interface of sas7bdat.
package cli

import (
	"fmt"
	"os"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/defineEditor/sas7bdat/internal/cli/commands"
	"github.com/defineEditor/sas7bdat/internal/cli/config"
)

// Version is set at build time.
var Version = "0.1.0"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "sas7bdat",
		Short: "Read SAS7BDAT files",
		Long: `sas7bdat reads the metadata and rows of SAS7BDAT dataset files.

It prints descriptors and rows, lists distinct values and converts files
to CSV, Dataset-JSON, Parquet, Arrow, SQLite or one file per column.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			env := commands.NewEnv(cfg, cmd.ErrOrStderr())
			if cfg.File != "" {
				level.Debug(env.Logger).Log("msg", "using config file", "path", cfg.File)
			}
			cmd.SetContext(commands.WithEnv(cmd.Context(), env))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			env := commands.GetEnv(cmd.Context())
			return writeMetrics(env.Config.MetricsFile, env.Registry)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sas7bdat.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table|json|csv|objects)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error|none)")
	rootCmd.PersistentFlags().String("encoding", "", "Text encoding overriding the file header, e.g. latin1")
	rootCmd.PersistentFlags().Int("buffer-length", 0, "Rows decoded per pass when scanning whole files")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this textfile")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.Outputs, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.LogLevels, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewMetadataCommand())
	rootCmd.AddCommand(commands.NewReadCommand())
	rootCmd.AddCommand(commands.NewUniqueCommand())
	rootCmd.AddCommand(commands.NewExportCommand())

	return rootCmd
}

// writeMetrics dumps reg in the node exporter textfile format.
func writeMetrics(path string, reg *prometheus.Registry) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
