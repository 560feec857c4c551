package sas7bdat

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellString(t *testing.T) {
	assert.Equal(t, "null", Null().String())
	assert.Equal(t, "abc", Text("abc").String())
	assert.Equal(t, "2.5", Number(2.5).String())
	assert.Equal(t, "100000000", Number(1e8).String())
	assert.Equal(t, "-3", Number(-3).String())
}

func TestCellEqual(t *testing.T) {
	assert.True(t, Null().Equal(Cell{}))
	assert.True(t, Text("1").Equal(Text("1")))
	assert.False(t, Text("1").Equal(Number(1)))
	assert.False(t, Null().Equal(Text("")))
}

func TestCellJSON(t *testing.T) {
	b, err := json.Marshal(Row{Number(1), Text("a"), Null(), Number(math.NaN())})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,"a",null,null]`, string(b))

	var r Row
	require.NoError(t, json.Unmarshal([]byte(`[2.5,"b",null]`), &r))
	assert.Equal(t, Row{Number(2.5), Text("b"), Null()}, r)

	assert.Error(t, json.Unmarshal([]byte(`[true]`), &r))
}

func TestDescriptorJSON(t *testing.T) {
	d := &DatasetDescriptor{
		Name:       "dm",
		FileFormat: FileFormat,
		Columns: []ColumnDescriptor{
			{ItemOID: "IT.ID", Name: "ID", Label: "ID", DataType: TypeDouble},
		},
	}
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "SAS7BDAT", m["fileFormat"])
	col := m["columns"].([]any)[0].(map[string]any)
	assert.Equal(t, "IT.ID", col["itemOID"])
	assert.NotContains(t, col, "length")
	assert.NotContains(t, col, "displayFormat")
}

func TestColumnIndex(t *testing.T) {
	d := &DatasetDescriptor{Columns: []ColumnDescriptor{{Name: "USUBJID"}, {Name: "Age"}}}
	assert.Equal(t, 0, d.ColumnIndex("usubjid"))
	assert.Equal(t, 1, d.ColumnIndex("AGE"))
	assert.Equal(t, -1, d.ColumnIndex("SEX"))
	assert.Equal(t, []string{"USUBJID", "Age"}, d.ColumnNames())
}
