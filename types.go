package sas7bdat

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FileFormat is the FileFormat value of every descriptor.
const FileFormat = "SAS7BDAT"

// LogicalType is the output type of a column.  Unrecognised storage types
// map to a one-character LogicalType holding the raw type code.
type LogicalType string

const (
	TypeText    LogicalType = "text"
	TypeInteger LogicalType = "integer"
	TypeDouble  LogicalType = "double"
)

// IsNumeric reports whether cells of this type are numbers.
func (t LogicalType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDouble
}

// SourceSystem identifies the software that wrote the file.
type SourceSystem struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// DatasetDescriptor is the metadata of one file.
type DatasetDescriptor struct {
	Name              string             `json:"name"`
	FilePath          string             `json:"filePath"`
	FileFormat        string             `json:"fileFormat"`
	Label             string             `json:"label"`
	Records           int                `json:"records"`
	CreationDateTime  int64              `json:"creationDateTime"`
	ModifiedDateTime  int64              `json:"modifiedDateTime"`
	SourceSystem      SourceSystem       `json:"sourceSystem"`
	Compression       string             `json:"compression"`
	Encoding          string             `json:"encoding,omitempty"`
	Is64Bit           bool               `json:"is64Bit"`
	FileFormatVersion int                `json:"fileFormatVersion,omitempty"`
	Columns           []ColumnDescriptor `json:"columns"`
}

// ColumnIndex returns the position of the column with the given name,
// compared case-insensitively, or -1.
func (d *DatasetDescriptor) ColumnIndex(name string) int {
	for i := range d.Columns {
		if strings.EqualFold(d.Columns[i].Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (d *DatasetDescriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnDescriptor describes one column.  Length and DisplayFormat are
// zero when the file does not carry them.
type ColumnDescriptor struct {
	ItemOID       string      `json:"itemOID"`
	Name          string      `json:"name"`
	Label         string      `json:"label"`
	DataType      LogicalType `json:"dataType"`
	Length        int         `json:"length,omitempty"`
	DisplayFormat string      `json:"displayFormat,omitempty"`
}

// ItemOID returns the item OID for a column name.
func ItemOID(name string) string {
	return "IT." + name
}

// CellKind tells which variant a Cell holds.
type CellKind uint8

const (
	KindNull CellKind = iota
	KindText
	KindNumber
)

// Cell is one value of a row: text, number or null.  The zero Cell is
// null.
type Cell struct {
	kind CellKind
	str  string
	num  float64
}

// Null returns a null cell.
func Null() Cell { return Cell{} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, str: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }

// Kind returns the variant held by c.
func (c Cell) Kind() CellKind { return c.kind }

// IsNull reports whether c is null.
func (c Cell) IsNull() bool { return c.kind == KindNull }

// Text returns the text of a text cell and whether c is one.
func (c Cell) Text() (string, bool) { return c.str, c.kind == KindText }

// Number returns the value of a numeric cell and whether c is one.
func (c Cell) Number() (float64, bool) { return c.num, c.kind == KindNumber }

// Value returns nil, a string or a float64.
func (c Cell) Value() any {
	switch c.kind {
	case KindText:
		return c.str
	case KindNumber:
		return c.num
	}
	return nil
}

// String formats c the way it is shown to users: numbers in their
// shortest form and null as "null".
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.str
	case KindNumber:
		return formatNumber(c.num)
	}
	return "null"
}

func formatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal reports whether two cells hold the same variant and value.
func (c Cell) Equal(o Cell) bool {
	return c.kind == o.kind && c.str == o.str && c.num == o.num
}

// MarshalJSON encodes c as a JSON string, number or null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindText:
		return json.Marshal(c.str)
	case KindNumber:
		if math.IsInf(c.num, 0) || math.IsNaN(c.num) {
			return []byte("null"), nil
		}
		return json.Marshal(c.num)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a JSON string, number or null.
func (c *Cell) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		*c = Text(x)
	case float64:
		*c = Number(x)
	case nil:
		*c = Null()
	default:
		return &json.UnsupportedValueError{Str: string(b)}
	}
	return nil
}

// Row is one record, positionally aligned with the columns.
type Row []Cell

// RowMatrix is the row-major content of a file.
type RowMatrix []Row

// Object is a record keyed by column name.
type Object map[string]Cell
