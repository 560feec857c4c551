package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defineEditor/sas7bdat"
	"github.com/defineEditor/sas7bdat/decode"
	"github.com/defineEditor/sas7bdat/decode/decodetest"
)

const vsPath = "/data/vs.sas7bdat"

func vsFixture() *decodetest.Fixture {
	return &decodetest.Fixture{
		Metadata: decode.Metadata{RowCount: 3, TableName: "Vital Signs", ModifiedTime: 1600000000},
		Variables: []decode.Variable{
			{Index: 0, Name: "USUBJID", Label: "Subject", Type: decode.TypeString, StorageWidth: 12},
			{Index: 1, Name: "VSORRES", Type: decode.TypeDouble, StorageWidth: 8, Format: "8.2"},
			{Index: 2, Name: "VSTEST", Type: decode.TypeString, StorageWidth: 20},
		},
		Records: [][]decode.Value{
			{decode.StringValue("01"), decode.DoubleValue(72.5), decode.StringValue("Pulse, resting")},
			{decode.StringValue("02"), decode.MissingValue(decode.TypeDouble), decode.StringValue(`Say "ah"`)},
			{decode.StringValue("03"), decode.DoubleValue(-1), decode.MissingValue(decode.TypeString)},
		},
	}
}

func openVS(t *testing.T) *sas7bdat.Dataset {
	t.Helper()
	ds, err := sas7bdat.New(sas7bdat.WithOpener(decodetest.New(vsPath, vsFixture()))).Open(vsPath)
	require.NoError(t, err)
	return ds
}

// recordingSink keeps what it is given.
type recordingSink struct {
	desc    *sas7bdat.DatasetDescriptor
	chunks  []int
	rows    sas7bdat.RowMatrix
	closed  bool
	aborted bool
	failOn  int
}

func (s *recordingSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	s.desc = desc
	return nil
}

func (s *recordingSink) WriteRows(rows sas7bdat.RowMatrix) error {
	if s.failOn > 0 && len(s.chunks)+1 == s.failOn {
		return errors.New("disk full")
	}
	s.chunks = append(s.chunks, len(rows))
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *recordingSink) Abort() { s.aborted = true }

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestCopy(t *testing.T) {
	ds := openVS(t)
	s := &recordingSink{}

	n, err := Copy(ds, s, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{2, 1}, s.chunks)
	assert.Equal(t, "vs", s.desc.Name)
	assert.Len(t, s.rows, 3)
	assert.Equal(t, sas7bdat.Text("03"), s.rows[2][0])
	assert.True(t, s.closed)
	assert.False(t, s.aborted)
}

func TestCopyFailure(t *testing.T) {
	ds := openVS(t)
	s := &recordingSink{failOn: 2}

	n, err := Copy(ds, s, 2)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 2, n)
	assert.True(t, s.aborted)
	assert.True(t, s.closed)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	_, err = ParseFormat("xlsx")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestNew(t *testing.T) {
	var stdout bytes.Buffer

	s, err := New(FormatCSV, "-", &stdout, Options{})
	require.NoError(t, err)
	assert.IsType(t, &CSVSink{}, s)

	_, err = New(FormatSQLite, "", &stdout, Options{})
	assert.ErrorContains(t, err, "needs an output path")

	_, err = New(FormatColumns, t.TempDir(), &stdout, Options{ColumnMode: "hex"})
	assert.ErrorContains(t, err, "column mode")

	out := filepath.Join(t.TempDir(), "vs.json")
	s, err = New(FormatDatasetJSON, out, &stdout, Options{})
	require.NoError(t, err)
	_, err = Copy(openVS(t), s, 0)
	require.NoError(t, err)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), `{"datasetJSONCreationDateTime"`))
	assert.Zero(t, stdout.Len())
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	_, err := Copy(openVS(t), NewCSV(&buf, nil), 2)
	require.NoError(t, err)

	want := "USUBJID,VSORRES,VSTEST\n" +
		"01,72.5,\"Pulse, resting\"\n" +
		"02,,\"Say \"\"ah\"\"\"\n" +
		"03,-1,\n"
	assert.Equal(t, want, buf.String())
}
