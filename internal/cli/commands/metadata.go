package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/defineEditor/sas7bdat"
)

// NewMetadataCommand creates the metadata command.
func NewMetadataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <file>",
		Short: "Show the metadata of a file",
		Long: `Read the header and variable definitions of a SAS7BDAT file without
decoding any rows.

With the table output the dataset properties are followed by one line
per column.  The json and objects outputs print the descriptor; csv
prints the column table only.`,
		Example: `  sas7bdat metadata dm.sas7bdat
  sas7bdat metadata dm.sas7bdat -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := GetEnv(cmd.Context())
			desc, err := env.Extractor.GetMetadata(args[0])
			if err != nil {
				return err
			}
			return renderMetadata(cmd, env.Config.Output, desc)
		},
	}
}

var columnHeader = []string{"#", "Name", "Label", "Type", "Length", "Format"}

func columnRows(desc *sas7bdat.DatasetDescriptor) [][]string {
	rows := make([][]string, len(desc.Columns))
	for i, c := range desc.Columns {
		length := ""
		if c.Length > 0 {
			length = strconv.Itoa(c.Length)
		}
		rows[i] = []string{strconv.Itoa(i + 1), c.Name, c.Label, string(c.DataType), length, c.DisplayFormat}
	}
	return rows
}

func unixText(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func renderMetadata(cmd *cobra.Command, output string, desc *sas7bdat.DatasetDescriptor) error {
	w := cmd.OutOrStdout()
	switch output {
	case "json", "objects":
		return renderJSON(w, desc)
	case "csv":
		return renderCSV(w, columnHeader, columnRows(desc))
	}

	source := desc.SourceSystem.Name
	if desc.SourceSystem.Version != "" {
		source += " " + desc.SourceSystem.Version
	}
	renderTable(w, []string{"Property", "Value"}, [][]string{
		{"Name", desc.Name},
		{"Label", desc.Label},
		{"Records", strconv.Itoa(desc.Records)},
		{"Columns", strconv.Itoa(len(desc.Columns))},
		{"Created", unixText(desc.CreationDateTime)},
		{"Modified", unixText(desc.ModifiedDateTime)},
		{"Source system", source},
		{"Compression", desc.Compression},
		{"Encoding", desc.Encoding},
		{"64-bit", strconv.FormatBool(desc.Is64Bit)},
		{"Format version", strconv.Itoa(desc.FileFormatVersion)},
	})
	_, _ = fmt.Fprintln(w)
	renderTable(w, columnHeader, columnRows(desc))
	return nil
}
