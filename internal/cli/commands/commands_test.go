package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defineEditor/sas7bdat/internal/cli/config"
	"github.com/defineEditor/sas7bdat/internal/sasfile/sasfiletest"
)

func writeDM(t *testing.T) string {
	t.Helper()
	return sasfiletest.WriteTemp(t, "dm.sas7bdat", &sasfiletest.File{
		Name: "DM",
		Columns: []sasfiletest.Column{
			{Name: "USUBJID", Label: "Subject", Width: 4},
			{Name: "AGE", Label: "Age", Numeric: true, Format: "3."},
			{Name: "SEX", Width: 1},
		},
		Rows: [][]any{
			{"01", 34, "F"},
			{"02", 71, "M"},
			{"03", nil, "F"},
			{"04", 66, "F"},
		},
	})
}

// execute runs cmd with a fresh Env using the given output format.
func execute(t *testing.T, cmd *cobra.Command, output string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cfg := &config.Config{Output: output, LogLevel: "none", BufferLength: 2}
	cmd.SetContext(WithEnv(context.Background(), NewEnv(cfg, &stderr)))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommandDefinitions(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewMetadataCommand(), "metadata <file>", nil},
		{NewReadCommand(), "read <file>", []string{"offset", "limit", "columns", "where", "dynamic", "summary"}},
		{NewUniqueCommand(), "unique <file>", []string{"columns", "limit", "count", "no-sort"}},
		{NewExportCommand(), "export <file>", []string{"format", "out", "table", "mode"}},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Example)
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, NewVersionCommand("1.2.3"), "table")
	require.NoError(t, err)
	assert.Contains(t, out, "sas7bdat v1.2.3")
}

func TestMetadataCommand(t *testing.T) {
	path := writeDM(t)

	out, _, err := execute(t, NewMetadataCommand(), "table", path)
	require.NoError(t, err)
	for _, want := range []string{"Records", "│ 4 ", "USUBJID", "Subject", "double", "3."} {
		assert.Contains(t, out, want)
	}

	out, _, err = execute(t, NewMetadataCommand(), "json", path)
	require.NoError(t, err)
	var desc struct {
		Name    string `json:"name"`
		Records int    `json:"records"`
		Columns []struct {
			Name     string `json:"name"`
			DataType string `json:"dataType"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, "dm", desc.Name)
	assert.Equal(t, 4, desc.Records)
	require.Len(t, desc.Columns, 3)
	assert.Equal(t, "text", desc.Columns[0].DataType)

	out, _, err = execute(t, NewMetadataCommand(), "csv", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "#,Name,Label,Type,Length,Format", lines[0])
	assert.Equal(t, "2,AGE,Age,double,8,3.", lines[2])
}

func TestMetadataCommandMissingFile(t *testing.T) {
	_, _, err := execute(t, NewMetadataCommand(), "table", filepath.Join(t.TempDir(), "none.sas7bdat"))
	assert.Error(t, err)

	_, _, err = execute(t, NewMetadataCommand(), "table")
	assert.ErrorContains(t, err, "accepts 1 arg")
}

func TestReadCommand(t *testing.T) {
	path := writeDM(t)

	out, _, err := execute(t, NewReadCommand(), "csv", path)
	require.NoError(t, err)
	assert.Equal(t, "USUBJID,AGE,SEX\n01,34,F\n02,71,M\n03,,F\n04,66,F\n", out)

	out, _, err = execute(t, NewReadCommand(), "csv", path, "--offset", "1", "--limit", "2", "--columns", "sex,usubjid")
	require.NoError(t, err)
	assert.Equal(t, "SEX,USUBJID\nM,02\nF,03\n", out)

	out, _, err = execute(t, NewReadCommand(), "table", path, "--where", `SEX == "F" && AGE != null`)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "04")
	assert.NotContains(t, out, "03")
}

func TestReadCommandJSON(t *testing.T) {
	path := writeDM(t)

	out, _, err := execute(t, NewReadCommand(), "json", path, "--limit", "2")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"columns": ["USUBJID", "AGE", "SEX"],
		"rows": [["01", 34, "F"], ["02", 71, "M"]]
	}`, out)

	out, _, err = execute(t, NewReadCommand(), "objects", path, "--offset", "2", "--columns", "USUBJID,AGE")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"USUBJID": "03", "AGE": null}, {"USUBJID": "04", "AGE": 66}]`, out)

	out, _, err = execute(t, NewReadCommand(), "json", path, "--where", "AGE != null && AGE > 100")
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns": ["USUBJID", "AGE", "SEX"], "rows": []}`, out)
}

func TestReadCommandSummary(t *testing.T) {
	path := writeDM(t)

	out, _, err := execute(t, NewReadCommand(), "csv", path, "--summary")
	require.NoError(t, err)
	assert.Equal(t, "Column,Type,Count,Missing\n"+
		"USUBJID,text,4,0\n"+
		"AGE,double,4,1\n"+
		"SEX,text,4,0\n", out)

	out, _, err = execute(t, NewReadCommand(), "json", path, "--summary", "--columns", "age", "--where", `SEX == "F"`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name": "AGE", "type": "double", "count": 3, "missing": 1}]`, out)
}

func TestReadCommandErrors(t *testing.T) {
	path := writeDM(t)

	_, _, err := execute(t, NewReadCommand(), "table", path, "--where", "AGE >")
	assert.Error(t, err)

	_, _, err = execute(t, NewReadCommand(), "table", path, "--offset", "10")
	assert.ErrorContains(t, err, "start")

	_, _, err = execute(t, NewReadCommand(), "table", path, "--columns", "WEIGHT")
	assert.ErrorContains(t, err, "WEIGHT")
}

func TestUniqueCommand(t *testing.T) {
	path := writeDM(t)

	out, _, err := execute(t, NewUniqueCommand(), "csv", path, "--columns", "sex,age", "--count")
	require.NoError(t, err)
	assert.Equal(t, "Column,Value,Count\n"+
		"SEX,F,3\n"+
		"SEX,M,1\n"+
		"AGE,34,1\n"+
		"AGE,66,1\n"+
		"AGE,71,1\n"+
		"AGE,,1\n", out)

	out, _, err = execute(t, NewUniqueCommand(), "json", path, "--columns", "AGE", "--no-sort", "--limit", "2")
	require.NoError(t, err)
	var res map[string]struct {
		Values []any `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []any{34.0, 71.0}, res["AGE"].Values)

	_, _, err = execute(t, NewUniqueCommand(), "table", path)
	assert.ErrorContains(t, err, "--columns is required")
}

func TestExportCommand(t *testing.T) {
	path := writeDM(t)

	out, _, err := execute(t, NewExportCommand(), "table", path, "--format", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "USUBJID,AGE,SEX\n01,34,F\n02,71,M\n03,,F\n04,66,F\n", out)

	dir := filepath.Join(t.TempDir(), "cols")
	out, stderr, err := execute(t, NewExportCommand(), "table", path, "--format", "columns", "--out", dir)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Exported 4 rows to "+dir)
	b, err := os.ReadFile(filepath.Join(dir, "2"))
	require.NoError(t, err)
	assert.Equal(t, "F\nM\nF\nF\n", string(b))
}

func TestExportCommandErrors(t *testing.T) {
	path := writeDM(t)

	_, _, err := execute(t, NewExportCommand(), "table", path)
	assert.ErrorContains(t, err, "--format is required")

	_, _, err = execute(t, NewExportCommand(), "table", path, "--format", "xlsx")
	assert.ErrorContains(t, err, "unknown export format")

	_, _, err = execute(t, NewExportCommand(), "table", path, "--format", "sqlite")
	assert.ErrorContains(t, err, "needs an output path")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"msg=d", "msg=i", "msg=w", "msg=e"}},
		{"info", []string{"msg=i", "msg=w", "msg=e"}},
		{"warn", []string{"msg=w", "msg=e"}},
		{"error", []string{"msg=e"}},
		{"none", nil},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)
			_ = level.Debug(logger).Log("msg", "d")
			_ = level.Info(logger).Log("msg", "i")
			_ = level.Warn(logger).Log("msg", "w")
			_ = level.Error(logger).Log("msg", "e")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				if i := strings.Index(line, "msg="); i >= 0 {
					got = append(got, line[i:])
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
