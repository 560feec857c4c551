package export

import (
	"fmt"

	"github.com/defineEditor/sas7bdat"
)

// A Series is one column of a chunk of rows, with a mask for missing
// values.  Numeric columns hold a []float64 and text columns a []string.
type Series struct {

	// The column name.
	Name string

	// The logical type of the column.
	Type sas7bdat.LogicalType

	length int

	// Either []float64 or []string.
	data any

	// Indicators that data values are missing.  If nil, there are
	// no missing values.
	missing []bool
}

// NewSeries returns a new Series value with the given name and data
// contents.  The data slice parameter is not copied.
func NewSeries(name string, data any, missing []bool) (*Series, error) {

	var (
		length int
		typ    sas7bdat.LogicalType
	)
	switch x := data.(type) {
	case []float64:
		length, typ = len(x), sas7bdat.TypeDouble
	case []string:
		length, typ = len(x), sas7bdat.TypeText
	default:
		return nil, fmt.Errorf("unsupported series data %T", data)
	}
	if missing != nil && len(missing) != length {
		return nil, fmt.Errorf("series %s: %d missing flags for %d values", name, len(missing), length)
	}

	return &Series{
		Name:    name,
		Type:    typ,
		length:  length,
		data:    data,
		missing: missing,
	}, nil
}

// Transpose splits rows into one Series per column.  Numeric columns
// become []float64 series; all other columns become []string series.
// A cell whose kind does not match its column is an error.
func Transpose(columns []sas7bdat.ColumnDescriptor, rows sas7bdat.RowMatrix) ([]*Series, error) {

	out := make([]*Series, len(columns))
	for j, col := range columns {
		missing := make([]bool, len(rows))
		var data any
		if col.DataType.IsNumeric() {
			x := make([]float64, len(rows))
			for i, r := range rows {
				if r[j].IsNull() {
					missing[i] = true
					continue
				}
				v, ok := r[j].Number()
				if !ok {
					return nil, fmt.Errorf("row %d column %s: expected a number, got %q", i, col.Name, r[j].String())
				}
				x[i] = v
			}
			data = x
		} else {
			x := make([]string, len(rows))
			for i, r := range rows {
				if r[j].IsNull() {
					missing[i] = true
					continue
				}
				x[i] = r[j].String()
			}
			data = x
		}

		s, err := NewSeries(col.Name, data, missing)
		if err != nil {
			return nil, err
		}
		s.Type = col.DataType
		out[j] = s
	}

	return out, nil
}

// Data returns the data component of the Series.
func (ser *Series) Data() any {
	return ser.data
}

// Length returns the number of elements in a Series.
func (ser *Series) Length() int {
	return ser.length
}

// IsMissing reports whether element i is missing.
func (ser *Series) IsMissing(i int) bool {
	return ser.missing != nil && ser.missing[i]
}

// CountMissing returns the number of missing values in the Series.
func (ser *Series) CountMissing() int {

	m := 0
	for i := 0; i < ser.length; i++ {
		if ser.IsMissing(i) {
			m++
		}
	}

	return m
}

// AsFloat64Slice returns the data of the series as a float64 slice,
// and a boolean slice for the missing value indicators.
func (ser *Series) AsFloat64Slice() ([]float64, []bool, error) {

	v, ok := ser.data.([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("can't convert %T to []float64", ser.data)
	}

	return v, ser.missing, nil
}

// AsStringSlice returns the series data as slices for the values,
// and the missing data indicators.
func (ser *Series) AsStringSlice() ([]string, []bool, error) {

	v, ok := ser.data.([]string)
	if !ok {
		return nil, nil, fmt.Errorf("can't convert %T to []string", ser.data)
	}

	return v, ser.missing, nil
}

// ColumnSummary counts the values of one column.
type ColumnSummary struct {
	Name    string               `json:"name"`
	Type    sas7bdat.LogicalType `json:"type"`
	Count   int                  `json:"count"`
	Missing int                  `json:"missing"`
}

// Summarize returns the value and missing counts of each column of rows.
func Summarize(columns []sas7bdat.ColumnDescriptor, rows sas7bdat.RowMatrix) ([]ColumnSummary, error) {
	series, err := Transpose(columns, rows)
	if err != nil {
		return nil, err
	}
	out := make([]ColumnSummary, len(series))
	for j, ser := range series {
		out[j] = ColumnSummary{
			Name:    ser.Name,
			Type:    ser.Type,
			Count:   ser.Length(),
			Missing: ser.CountMissing(),
		}
	}
	return out, nil
}
