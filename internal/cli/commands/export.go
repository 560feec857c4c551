package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/defineEditor/sas7bdat/internal/export"
)

// ExportOptions holds the options of the export command.
type ExportOptions struct {
	Format string
	Out    string
	Table  string
	Mode   string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	formats := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		formats[i] = string(f)
	}

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Convert a file to another format",
		Long: `Stream every row of a SAS7BDAT file into another format.

Formats: ` + strings.Join(formats, ", ") + `.

csv, datasetjson and arrow write to stdout unless --out is given.
parquet and sqlite need a file and columns a directory.  An existing
SQLite table of the same name is replaced.`,
		Example: `  sas7bdat export dm.sas7bdat --format csv > dm.csv
  sas7bdat export dm.sas7bdat --format parquet --out dm.parquet
  sas7bdat export dm.sas7bdat --format sqlite --out study.db --table dm
  sas7bdat export dm.sas7bdat --format columns --out dm_cols --mode binary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Export format (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Output file or directory")
	cmd.Flags().StringVar(&opts.Table, "table", "", "SQLite table name (default: the dataset name)")
	cmd.Flags().StringVar(&opts.Mode, "mode", string(export.ColumnText), "Numeric encoding of the columns format: text or binary")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return formats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExport(cmd *cobra.Command, path string, opts *ExportOptions) error {
	if opts.Format == "" {
		return errors.New("--format is required")
	}
	format, err := export.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	env := GetEnv(cmd.Context())
	ds, err := env.Extractor.Open(path)
	if err != nil {
		return err
	}

	sink, err := export.New(format, opts.Out, cmd.OutOrStdout(), export.Options{
		Table:      opts.Table,
		ColumnMode: opts.Mode,
	})
	if err != nil {
		return err
	}

	n, err := export.Copy(ds, sink, env.Config.BufferLength)
	if err != nil {
		return fmt.Errorf("export to %s failed after %d rows: %w", format, n, err)
	}
	level.Info(env.Logger).Log("msg", "export finished", "format", format, "out", opts.Out, "rows", n)
	if opts.Out != "" && opts.Out != "-" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rows to %s\n", n, opts.Out)
	}
	return nil
}
