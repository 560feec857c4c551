package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/defineEditor/sas7bdat"
	"github.com/defineEditor/sas7bdat/internal/export"
)

// ReadOptions holds the options of the read command.
type ReadOptions struct {
	Offset  int
	Limit   int
	Columns []string
	Where   string
	Dynamic bool
	Summary bool
}

// NewReadCommand creates the read command.
func NewReadCommand() *cobra.Command {
	opts := &ReadOptions{}

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Print the rows of a file",
		Long: `Decode rows of a SAS7BDAT file and print them.

--where takes a CEL expression over the column names, for example
'AGE >= 18 && SEX == "F"'.  Missing values are null in the expression.
--limit counts the rows printed, after filtering.`,
		Example: `  sas7bdat read dm.sas7bdat --limit 10
  sas7bdat read dm.sas7bdat --columns USUBJID,AGE --where 'AGE > 65' -o csv
  sas7bdat read dm.sas7bdat --offset 100 -o objects
  sas7bdat read dm.sas7bdat --where 'SEX == "F"' --summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "First record to read")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of rows (0 for all)")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Columns to print, in order")
	cmd.Flags().StringVar(&opts.Where, "where", "", "CEL filter expression")
	cmd.Flags().BoolVar(&opts.Dynamic, "dynamic", false, "Grow the read window with the filter hit ratio")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "Print value and missing counts per column instead of rows")

	return cmd
}

func runRead(cmd *cobra.Command, path string, opts *ReadOptions) error {
	env := GetEnv(cmd.Context())
	ds, err := env.Extractor.Open(path)
	if err != nil {
		return err
	}
	desc := ds.Metadata()

	q := sas7bdat.Query{
		Start:         opts.Offset,
		Length:        opts.Limit,
		Columns:       opts.Columns,
		DynamicLength: opts.Dynamic,
	}
	if opts.Where != "" {
		f, err := sas7bdat.NewExprFilter(desc.Columns, opts.Where)
		if err != nil {
			return err
		}
		q.Filter = f
	}

	w := cmd.OutOrStdout()
	if opts.Summary {
		return renderSummary(cmd, env.Config.Output, ds, q)
	}
	if env.Config.Output == "objects" {
		objs, err := ds.Objects(q)
		if err != nil {
			return err
		}
		return renderJSON(w, objs)
	}

	rows, err := ds.Rows(q)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = sas7bdat.RowMatrix{}
	}
	header := desc.ColumnNames()
	if len(opts.Columns) > 0 {
		header = make([]string, len(opts.Columns))
		for i, name := range opts.Columns {
			header[i] = desc.Columns[desc.ColumnIndex(name)].Name
		}
	}

	switch env.Config.Output {
	case "json":
		return renderJSON(w, struct {
			Columns []string           `json:"columns"`
			Rows    sas7bdat.RowMatrix `json:"rows"`
		}{header, rows})
	case "csv":
		return renderCSV(w, header, rowTexts(rows))
	}
	renderTable(w, header, rowTexts(rows))
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderSummary(cmd *cobra.Command, output string, ds *sas7bdat.Dataset, q sas7bdat.Query) error {
	rows, err := ds.Rows(q)
	if err != nil {
		return err
	}
	desc := ds.Metadata()
	columns := desc.Columns
	if len(q.Columns) > 0 {
		columns = make([]sas7bdat.ColumnDescriptor, len(q.Columns))
		for i, name := range q.Columns {
			columns[i] = desc.Columns[desc.ColumnIndex(name)]
		}
	}
	sum, err := export.Summarize(columns, rows)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output == "json" || output == "objects" {
		return renderJSON(w, sum)
	}
	header := []string{"Column", "Type", "Count", "Missing"}
	lines := make([][]string, len(sum))
	for i, c := range sum {
		lines[i] = []string{c.Name, string(c.Type), strconv.Itoa(c.Count), strconv.Itoa(c.Missing)}
	}
	if output == "csv" {
		return renderCSV(w, header, lines)
	}
	renderTable(w, header, lines)
	return nil
}
