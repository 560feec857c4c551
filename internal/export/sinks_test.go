package export

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func TestDatasetJSON(t *testing.T) {
	var buf bytes.Buffer
	s := NewDatasetJSON(&buf, nil)
	s.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	_, err := Copy(openVS(t), s, 2)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2024-05-01T12:00:00", doc["datasetJSONCreationDateTime"])
	assert.Equal(t, "1.1.0", doc["datasetJSONVersion"])
	assert.Equal(t, "2020-09-13T12:26:40", doc["dbLastModifiedDateTime"])
	assert.Equal(t, "IG.vs", doc["itemGroupOID"])
	assert.Equal(t, "Vital Signs", doc["label"])
	assert.Equal(t, 3.0, doc["records"])

	cols := doc["columns"].([]any)
	require.Len(t, cols, 3)
	assert.Equal(t, map[string]any{
		"itemOID":       "IT.VSORRES",
		"name":          "VSORRES",
		"label":         "VSORRES",
		"dataType":      "double",
		"length":        8.0,
		"displayFormat": "8.2",
	}, cols[1])
	assert.Equal(t, "string", cols[0].(map[string]any)["dataType"])

	assert.Equal(t, []any{
		[]any{"01", 72.5, "Pulse, resting"},
		[]any{"02", nil, `Say "ah"`},
		[]any{"03", -1.0, nil},
	}, doc["rows"])
}

func TestParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.parquet")
	n, err := Copy(openVS(t), NewParquet(path), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	assert.Equal(t, int64(3), pr.GetNumRows())
	// Root plus one element per column.
	assert.Len(t, pr.Footer.Schema, 4)
}

func TestParquetSchema(t *testing.T) {
	schema, err := ParquetSchema(openVS(t).Metadata().Columns)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Tag": "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": [
			{"Tag": "name=USUBJID, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
			{"Tag": "name=VSORRES, type=DOUBLE, repetitiontype=OPTIONAL"},
			{"Tag": "name=VSTEST, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"}
		]
	}`, schema)
}

func TestArrow(t *testing.T) {
	var buf bytes.Buffer
	_, err := Copy(openVS(t), NewArrow(&buf, nil), 2)
	require.NoError(t, err)

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(mem))
	require.NoError(t, err)
	defer r.Close()

	schema := r.Schema()
	require.Equal(t, 3, schema.NumFields())
	assert.Equal(t, "VSORRES", schema.Field(1).Name)
	label, ok := schema.Field(0).Metadata.GetValue("label")
	assert.True(t, ok)
	assert.Equal(t, "Subject", label)
	name, _ := schema.Metadata().GetValue("name")
	assert.Equal(t, "vs", name)

	require.Equal(t, 2, r.NumRecords())
	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.NumRows())

	res := rec.Column(1).(*array.Float64)
	assert.Equal(t, 72.5, res.Value(0))
	assert.True(t, res.IsNull(1))
	test := rec.Column(2).(*array.String)
	assert.Equal(t, `Say "ah"`, test.Value(1))

	rec, err = r.Record(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.NumRows())
	assert.True(t, rec.Column(2).IsNull(0))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.db")
	_, err := Copy(openVS(t), NewSQLite(path, ""), 2)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT USUBJID, VSORRES, VSTEST FROM "vs" ORDER BY USUBJID`)
	require.NoError(t, err)
	defer rows.Close()

	var got [][3]any
	for rows.Next() {
		var id string
		var res sql.NullFloat64
		var test sql.NullString
		require.NoError(t, rows.Scan(&id, &res, &test))
		var r [3]any
		r[0] = id
		if res.Valid {
			r[1] = res.Float64
		}
		if test.Valid {
			r[2] = test.String
		}
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][3]any{
		{"01", 72.5, "Pulse, resting"},
		{"02", nil, `Say "ah"`},
		{"03", -1.0, nil},
	}, got)

	var format string
	err = db.QueryRow(`SELECT display_format FROM ` + ColumnsTable + ` WHERE table_name = 'vs' AND name = 'VSORRES'`).Scan(&format)
	require.NoError(t, err)
	assert.Equal(t, "8.2", format)

	// A second export replaces the table.
	_, err = Copy(openVS(t), NewSQLite(path, ""), 0)
	require.NoError(t, err)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "vs"`).Scan(&count))
	assert.Equal(t, 3, count)
}

func TestSQLiteAbort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.db")
	s := NewSQLite(path, "vitals")
	require.NoError(t, s.Begin(openVS(t).Metadata()))
	s.Abort()
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'vitals'`).Scan(&count))
	assert.Zero(t, count)
}

func TestColumnize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cols")
	_, err := Copy(openVS(t), NewColumnize(dir, ColumnText), 2)
	require.NoError(t, err)

	read := func(name string) string {
		b, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "0,USUBJID\n1,VSORRES\n2,VSTEST\n", read("columns.txt"))
	assert.Equal(t, "01\n02\n03\n", read("0"))
	assert.Equal(t, "72.5\n\n-1\n", read("1"))
	assert.Equal(t, "Pulse, resting\nSay \"ah\"\n\n", read("2"))
}

func TestColumnizeBinary(t *testing.T) {
	dir := t.TempDir()
	_, err := Copy(openVS(t), NewColumnize(dir, ColumnBinary), 0)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	require.Len(t, b, 24)
	assert.Equal(t, 72.5, math.Float64frombits(binary.LittleEndian.Uint64(b[0:])))
	assert.True(t, math.IsNaN(math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))))
	assert.Equal(t, -1.0, math.Float64frombits(binary.LittleEndian.Uint64(b[16:])))
}
