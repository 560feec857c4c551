package commands

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/defineEditor/sas7bdat"
)

// UniqueOptions holds the options of the unique command.
type UniqueOptions struct {
	Columns []string
	Limit   int
	Count   bool
	NoSort  bool
}

// NewUniqueCommand creates the unique command.
func NewUniqueCommand() *cobra.Command {
	opts := &UniqueOptions{}

	cmd := &cobra.Command{
		Use:   "unique <file>",
		Short: "List the distinct values of columns",
		Long: `Scan a SAS7BDAT file and list the distinct values of the given columns.

Values are sorted by their text unless --no-sort is set, in which case
they keep the order of first appearance.  With --limit the scan stops
once every column has that many values.`,
		Example: `  sas7bdat unique dm.sas7bdat --columns SEX,RACE --count
  sas7bdat unique ae.sas7bdat --columns AEDECOD --limit 20 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnique(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to scan (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum distinct values per column (0 for all)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "Count the occurrences of each value")
	cmd.Flags().BoolVar(&opts.NoSort, "no-sort", false, "Keep values in order of first appearance")

	return cmd
}

func runUnique(cmd *cobra.Command, path string, opts *UniqueOptions) error {
	if len(opts.Columns) == 0 {
		return errors.New("--columns is required")
	}

	env := GetEnv(cmd.Context())
	ds, err := env.Extractor.Open(path)
	if err != nil {
		return err
	}
	res, err := ds.UniqueValues(sas7bdat.UniqueQuery{
		Columns:      opts.Columns,
		Limit:        opts.Limit,
		AddCount:     opts.Count,
		BufferLength: env.Config.BufferLength,
		NoSort:       opts.NoSort,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if env.Config.Output == "json" || env.Config.Output == "objects" {
		return renderJSON(w, res)
	}

	header := []string{"Column", "Value"}
	if opts.Count {
		header = append(header, "Count")
	}
	var rows [][]string
	desc := ds.Metadata()
	for _, name := range opts.Columns {
		col := desc.Columns[desc.ColumnIndex(name)].Name
		u := res[col]
		for _, v := range u.Values {
			row := []string{col, cellText(v)}
			if opts.Count {
				row = append(row, strconv.Itoa(u.Counts[v.String()]))
			}
			rows = append(rows, row)
		}
	}

	if env.Config.Output == "csv" {
		return renderCSV(w, header, rows)
	}
	renderTable(w, header, rows)
	return nil
}
