package sas7bdat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defineEditor/sas7bdat/decode"
	"github.com/defineEditor/sas7bdat/decode/decodetest"
)

const lbPath = "/data/lb.sas7bdat"

// numbered returns n records: ID 1..n, GROUP alternating A and B, and
// RESULT missing on every fifth record.
func numbered(n int) *decodetest.Fixture {
	f := &decodetest.Fixture{
		Metadata: decode.Metadata{RowCount: n, TableName: "LB"},
		Variables: []decode.Variable{
			{Index: 0, Name: "ID", Type: decode.TypeDouble},
			{Index: 1, Name: "GROUP", Type: decode.TypeString},
			{Index: 2, Name: "RESULT", Type: decode.TypeDouble},
		},
	}
	for i := 1; i <= n; i++ {
		group := "A"
		if i%2 == 0 {
			group = "B"
		}
		result := decode.DoubleValue(float64(i) / 2)
		if i%5 == 0 {
			result = decode.MissingValue(decode.TypeDouble)
		}
		f.Records = append(f.Records, []decode.Value{
			decode.DoubleValue(float64(i)), decode.StringValue(group), result,
		})
	}
	return f
}

func openNumbered(t *testing.T, n int) (*Dataset, *decodetest.Opener) {
	t.Helper()
	op := decodetest.New(lbPath, numbered(n))
	ds, err := New(WithOpener(op)).Open(lbPath)
	require.NoError(t, err)
	return ds, op
}

func ids(t *testing.T, rows RowMatrix) []float64 {
	t.Helper()
	out := make([]float64, len(rows))
	for i, r := range rows {
		n, ok := r[0].Number()
		require.True(t, ok)
		out[i] = n
	}
	return out
}

func groupIs(g string) Filter {
	return FilterFunc(func(r Row) (bool, error) {
		s, _ := r[1].Text()
		return s == g, nil
	})
}

func idAbove(n float64) Filter {
	return FilterFunc(func(r Row) (bool, error) {
		id, _ := r[0].Number()
		return id > n, nil
	})
}

func TestDatasetRows(t *testing.T) {
	ds, op := openNumbered(t, 20)
	assert.Equal(t, "lb", ds.Metadata().Name)
	assert.Equal(t, 20, ds.Metadata().Records)

	rows, err := ds.Rows(Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 20)

	rows, err = ds.Rows(Query{Start: 5, Length: 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7, 8}, ids(t, rows))

	rows, err = ds.Rows(Query{Start: 20})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = ds.Rows(Query{Length: 2, Columns: []string{"group", "ID"}})
	require.NoError(t, err)
	assert.Equal(t, RowMatrix{
		{Text("A"), Number(1)},
		{Text("B"), Number(2)},
	}, rows)

	assert.Equal(t, 0, op.Outstanding())
}

func TestDatasetValidation(t *testing.T) {
	ds, op := openNumbered(t, 20)
	opened := op.Opened()

	cases := []struct {
		q     Query
		param string
	}{
		{Query{Length: -2}, "length"},
		{Query{Start: -1}, "start"},
		{Query{Start: 21}, "start"},
		{Query{Columns: []string{"ID", "FOO", "BAR"}}, "columns"},
	}
	for _, tc := range cases {
		_, err := ds.Rows(tc.q)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, tc.param, ve.Param)
	}

	_, err := ds.Objects(Query{Columns: []string{"FOO", "BAR"}})
	assert.EqualError(t, err, "invalid columns FOO, BAR: not found")
	assert.Equal(t, opened, op.Opened())
}

func TestDatasetFilter(t *testing.T) {
	ds, op := openNumbered(t, 20)

	rows, err := ds.Rows(Query{Length: 3, Filter: groupIs("B")})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, ids(t, rows))
	assert.Equal(t, [][2]int{{0, NoLimit}, {0, 3}, {3, 3}}, op.Configs())
}

func TestDatasetFilterAllRows(t *testing.T) {
	ds, op := openNumbered(t, 20)

	rows, err := ds.Rows(Query{Filter: groupIs("A")})
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Equal(t, [][2]int{{0, NoLimit}, {0, NoLimit}}, op.Configs())
}

func TestDatasetFilterReachesEnd(t *testing.T) {
	ds, op := openNumbered(t, 20)

	rows, err := ds.Rows(Query{Length: 5, Filter: idAbove(19)})
	require.NoError(t, err)
	assert.Equal(t, []float64{20}, ids(t, rows))
	assert.Equal(t, [][2]int{{0, NoLimit}, {0, 5}, {5, 5}, {10, 5}, {15, 5}}, op.Configs())
}

func TestDatasetDynamicLength(t *testing.T) {
	ds, op := openNumbered(t, 20)

	rows, err := ds.Rows(Query{Length: 2, Filter: idAbove(15), DynamicLength: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{16, 17}, ids(t, rows))
	assert.Equal(t, [][2]int{{0, NoLimit}, {0, 2}, {2, 4}, {6, 8}, {14, 6}}, op.Configs())
}

func TestNextWindow(t *testing.T) {
	// Half the rows passed: 4 more rows need about 8 records.
	assert.Equal(t, 8, nextWindow(5, 10, 4, 5, 10, 100))
	// Never below the requested length.
	assert.Equal(t, 10, nextWindow(10, 10, 1, 10, 10, 100))
	// At most double the previous window.
	assert.Equal(t, 20, nextWindow(0, 10, 10, 10, 10, 100))
	// Never past the end of the file.
	assert.Equal(t, 3, nextWindow(0, 10, 10, 10, 10, 3))
}

func TestDatasetFilterError(t *testing.T) {
	ds, _ := openNumbered(t, 5)
	f, err := NewExprFilter(ds.Metadata().Columns, `RESULT > 1`)
	require.NoError(t, err)

	_, err = ds.Rows(Query{Filter: f})
	assert.Error(t, err)
}

func TestDatasetObjects(t *testing.T) {
	ds, _ := openNumbered(t, 20)

	objs, err := ds.Objects(Query{Start: 4, Length: 1})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, Object{"ID": Number(5), "GROUP": Text("A"), "RESULT": Null()}, objs[0])

	objs, err = ds.Objects(Query{Length: 1, Columns: []string{"result"}})
	require.NoError(t, err)
	assert.Equal(t, []Object{{"RESULT": Number(0.5)}}, objs)
}

func TestDatasetRecords(t *testing.T) {
	ds, op := openNumbered(t, 20)

	var got []float64
	for r, err := range ds.Records(0, 7) {
		require.NoError(t, err)
		n, _ := r[0].Number()
		got = append(got, n)
	}
	assert.Len(t, got, 20)
	assert.Equal(t, 20.0, got[19])
	assert.Equal(t, [][2]int{{0, NoLimit}, {0, 7}, {7, 7}, {14, 7}}, op.Configs())

	got = nil
	for r, err := range ds.Records(18, 0) {
		require.NoError(t, err)
		n, _ := r[0].Number()
		got = append(got, n)
	}
	assert.Equal(t, []float64{19, 20}, got)

	count := 0
	for range ds.Records(0, 5) {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, op.Outstanding())
}

func TestDatasetRecordsError(t *testing.T) {
	f := numbered(10)
	f.RunErr = decode.Errorf(decode.StatusRead, "read failed")
	op := decodetest.New(lbPath, f)
	ds, err := New(WithOpener(op)).Open(lbPath)
	require.NoError(t, err)

	var errs []error
	for _, err := range ds.Records(0, 4) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	var de *DecodeError
	assert.ErrorAs(t, errs[0], &de)
}

func TestUniqueValues(t *testing.T) {
	ds, _ := openNumbered(t, 20)

	u, err := ds.UniqueValues(UniqueQuery{Columns: []string{"group", "RESULT"}, AddCount: true, BufferLength: 6})
	require.NoError(t, err)

	require.Contains(t, u, "GROUP")
	assert.Equal(t, []Cell{Text("A"), Text("B")}, u["GROUP"].Values)
	assert.Equal(t, map[string]int{"A": 10, "B": 10}, u["GROUP"].Counts)

	res := u["RESULT"]
	assert.Len(t, res.Values, 17)
	assert.Equal(t, 4, res.Counts["null"])
	assert.Equal(t, []Cell{Number(0.5), Number(1), Number(1.5)}, res.Values[:3])
	assert.True(t, res.Values[len(res.Values)-1].IsNull())
}

func TestUniqueValuesSorting(t *testing.T) {
	ds, _ := openNumbered(t, 20)

	u, err := ds.UniqueValues(UniqueQuery{Columns: []string{"ID"}})
	require.NoError(t, err)
	assert.Equal(t, []Cell{Number(1), Number(10), Number(11)}, u["ID"].Values[:3])
	assert.Empty(t, u["ID"].Counts)

	u, err = ds.UniqueValues(UniqueQuery{Columns: []string{"ID"}, NoSort: true})
	require.NoError(t, err)
	assert.Equal(t, []Cell{Number(1), Number(2), Number(3)}, u["ID"].Values[:3])
}

func TestUniqueValuesLimit(t *testing.T) {
	ds, op := openNumbered(t, 20)
	before := len(op.Configs())

	u, err := ds.UniqueValues(UniqueQuery{Columns: []string{"GROUP"}, Limit: 1, AddCount: true, BufferLength: 5})
	require.NoError(t, err)
	assert.Equal(t, []Cell{Text("A")}, u["GROUP"].Values)
	assert.Equal(t, map[string]int{"A": 1}, u["GROUP"].Counts)
	assert.Len(t, op.Configs(), before+1)
}

func TestUniqueValuesValidation(t *testing.T) {
	ds, _ := openNumbered(t, 5)

	_, err := ds.UniqueValues(UniqueQuery{Columns: []string{"ID"}, Limit: -1})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "limit", ve.Param)

	_, err = ds.UniqueValues(UniqueQuery{})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "columns", ve.Param)
}
