package sas7bdat

import (
	"iter"
	"math"
	"sort"
	"strings"
)

// DefaultBufferLength is the chunk size used by Records and UniqueValues
// when none is given.
const DefaultBufferLength = 1000

// Dataset is an opened file with its metadata loaded.  Each read runs its
// own decode pass.
type Dataset struct {
	x    *Extractor
	path string
	desc *DatasetDescriptor
}

// Open reads the metadata of the file at path.
func (x *Extractor) Open(path string) (*Dataset, error) {
	desc, err := x.GetMetadata(path)
	if err != nil {
		return nil, err
	}
	return &Dataset{x: x, path: path, desc: desc}, nil
}

// Metadata returns the descriptor read by Open.
func (d *Dataset) Metadata() *DatasetDescriptor { return d.desc }

// Query selects rows of a Dataset.
type Query struct {
	// Start is the first record read.
	Start int
	// Length is the number of rows returned.  0 or NoLimit reads to the
	// end.
	Length int
	// Columns restricts and orders the returned columns.  Names are
	// matched case-insensitively.
	Columns []string
	Filter  Filter
	// DynamicLength grows the read window by the ratio of rows passing
	// Filter, so fewer passes are needed to fill Length.
	DynamicLength bool
}

// Rows returns the rows selected by q.
func (d *Dataset) Rows(q Query) (RowMatrix, error) {
	cols, err := d.resolve(q.Columns)
	if err != nil {
		return nil, err
	}
	rows, err := d.read(q)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return rows, nil
	}
	out := make(RowMatrix, len(rows))
	for i, r := range rows {
		out[i] = project(r, cols)
	}
	return out, nil
}

// Objects returns the rows selected by q keyed by column name.  Without
// q.Columns every column is included.
func (d *Dataset) Objects(q Query) ([]Object, error) {
	cols, err := d.resolve(q.Columns)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = make([]int, len(d.desc.Columns))
		for i := range cols {
			cols[i] = i
		}
	}
	rows, err := d.read(q)
	if err != nil {
		return nil, err
	}
	out := make([]Object, len(rows))
	for i, r := range rows {
		obj := make(Object, len(cols))
		for _, c := range cols {
			obj[d.desc.Columns[c].Name] = r[c]
		}
		out[i] = obj
	}
	return out, nil
}

// Records iterates over the rows from start in chunks of bufferLength.
// A failed chunk yields its error and stops the iteration.
func (d *Dataset) Records(start, bufferLength int) iter.Seq2[Row, error] {
	if bufferLength <= 0 {
		bufferLength = DefaultBufferLength
	}
	return func(yield func(Row, error) bool) {
		pos := start
		for {
			rows, err := d.read(Query{Start: pos, Length: bufferLength})
			if err != nil {
				yield(nil, err)
				return
			}
			if len(rows) == 0 {
				return
			}
			for _, r := range rows {
				if !yield(r, nil) {
					return
				}
			}
			pos += len(rows)
			if pos >= d.desc.Records {
				return
			}
		}
	}
}

func (d *Dataset) resolve(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cols := make([]int, len(names))
	var missing []string
	for i, n := range names {
		cols[i] = d.desc.ColumnIndex(n)
		if cols[i] < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Param: "columns", Value: strings.Join(missing, ", "), Reason: "not found"}
	}
	return cols, nil
}

func project(r Row, cols []int) Row {
	out := make(Row, len(cols))
	for i, c := range cols {
		out[i] = r[c]
	}
	return out
}

// read returns unprojected rows.  With a filter it keeps reading windows
// until Length rows pass or the file ends.
func (d *Dataset) read(q Query) (RowMatrix, error) {
	length := q.Length
	if length == 0 {
		length = NoLimit
	}
	if length < NoLimit {
		return nil, &ValidationError{Param: "length", Value: q.Length, Reason: "must be positive or -1 (for all records)"}
	}
	if q.Start < 0 || q.Start > d.desc.Records {
		return nil, &ValidationError{Param: "start", Value: q.Start, Reason: "must be between 0 and the record count"}
	}

	if q.Filter == nil {
		return d.x.ReadData(d.path, q.Start, length)
	}

	var (
		data    = RowMatrix{}
		current = q.Start
		window  = length
	)
	for {
		chunk, err := d.x.ReadData(d.path, current, window)
		if err != nil {
			return nil, err
		}
		kept, err := filterRows(chunk, q.Filter)
		if err != nil {
			return nil, err
		}

		if length == NoLimit || len(data)+len(kept) >= length || current+window >= d.desc.Records {
			if length != NoLimit && len(kept) > length-len(data) {
				kept = kept[:length-len(data)]
			}
			return append(data, kept...), nil
		}

		current += window
		if q.DynamicLength {
			window = nextWindow(len(data)+len(kept), current-q.Start, length-len(data), length, window, d.desc.Records-current)
		}
		data = append(data, kept...)
	}
}

// nextWindow estimates how many records to read to find the remaining
// rows, given how many of the records read so far passed the filter.
func nextWindow(passed, read, remaining, length, window, left int) int {
	ratio := math.Max(float64(passed)/float64(read), 0.1)
	estimate := int(math.Ceil(float64(remaining) / ratio))
	return min(max(estimate, length), window*2, length*10, left)
}

func filterRows(rows RowMatrix, f Filter) (RowMatrix, error) {
	kept := rows[:0]
	for _, r := range rows {
		ok, err := f.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// UniqueQuery selects the columns of UniqueValues.
type UniqueQuery struct {
	Columns []string
	// Limit caps the distinct values kept per column; 0 keeps all.
	Limit int
	// AddCount counts the occurrences of each value, keyed by its text
	// ("null" for nulls).
	AddCount     bool
	BufferLength int
	// NoSort keeps values in order of first appearance.
	NoSort bool
}

// Unique holds the distinct values of one column.
type Unique struct {
	Values []Cell         `json:"values"`
	Counts map[string]int `json:"counts"`
}

// UniqueValues scans the file and returns the distinct values of each
// requested column, keyed by the column name as stored in the file.
// Once every column has Limit values the scan stops, so counts then cover
// only the rows read.
func (d *Dataset) UniqueValues(q UniqueQuery) (map[string]*Unique, error) {
	if q.Limit < 0 {
		return nil, &ValidationError{Param: "limit", Value: q.Limit, Reason: "must be non-negative"}
	}
	cols, err := d.resolve(q.Columns)
	if err != nil {
		return nil, err
	}
	if cols == nil {
		return nil, &ValidationError{Param: "columns", Value: "", Reason: "at least one column is required"}
	}

	result := make(map[string]*Unique, len(cols))
	uniques := make([]*Unique, len(cols))
	for i, c := range cols {
		u := &Unique{Values: []Cell{}, Counts: map[string]int{}}
		result[d.desc.Columns[c].Name] = u
		uniques[i] = u
	}

	for r, err := range d.Records(0, q.BufferLength) {
		if err != nil {
			return nil, err
		}
		full := q.Limit != 0
		for i, c := range cols {
			u, v := uniques[i], r[c]
			if (q.Limit == 0 || len(u.Values) < q.Limit) && !containsValue(u.Values, v) {
				u.Values = append(u.Values, v)
			}
			if q.AddCount {
				u.Counts[v.String()]++
			}
			full = full && len(u.Values) >= q.Limit
		}
		if full {
			break
		}
	}

	if !q.NoSort {
		for _, u := range uniques {
			sort.SliceStable(u.Values, func(i, j int) bool {
				return u.Values[i].String() < u.Values[j].String()
			})
		}
	}
	return result, nil
}

func containsValue(list []Cell, c Cell) bool {
	for _, v := range list {
		if v.Equal(c) {
			return true
		}
	}
	return false
}
