package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/defineEditor/sas7bdat"
)

// ArrowSink writes an Arrow IPC file with one record batch per chunk.
// Numeric columns are float64 and the others utf8; all are nullable.
// Dataset and column labels are kept as schema and field metadata.
type ArrowSink struct {
	out     io.Writer
	closer  io.Closer
	mem     memory.Allocator
	columns []sas7bdat.ColumnDescriptor
	w       *ipc.FileWriter
	b       *array.RecordBuilder
}

// NewArrow returns an Arrow sink on w.  closer, when not nil, is closed by
// Close.
func NewArrow(w io.Writer, closer io.Closer) *ArrowSink {
	return &ArrowSink{out: w, closer: closer, mem: memory.NewGoAllocator()}
}

// ArrowSchema returns the schema used for desc.
func ArrowSchema(desc *sas7bdat.DatasetDescriptor) *arrow.Schema {
	fields := make([]arrow.Field, len(desc.Columns))
	for i, c := range desc.Columns {
		var typ arrow.DataType = arrow.BinaryTypes.String
		if c.DataType.IsNumeric() {
			typ = arrow.PrimitiveTypes.Float64
		}
		keys := []string{"label", "type"}
		values := []string{c.Label, string(c.DataType)}
		if c.Length > 0 {
			keys, values = append(keys, "length"), append(values, strconv.Itoa(c.Length))
		}
		if c.DisplayFormat != "" {
			keys, values = append(keys, "format"), append(values, c.DisplayFormat)
		}
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     typ,
			Nullable: true,
			Metadata: arrow.NewMetadata(keys, values),
		}
	}
	md := arrow.NewMetadata(
		[]string{"name", "label", "records"},
		[]string{desc.Name, desc.Label, strconv.Itoa(desc.Records)},
	)
	return arrow.NewSchema(fields, &md)
}

func (s *ArrowSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	schema := ArrowSchema(desc)
	w, err := ipc.NewFileWriter(s.out, ipc.WithSchema(schema), ipc.WithAllocator(s.mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	s.w = w
	s.b = array.NewRecordBuilder(s.mem, schema)
	s.columns = desc.Columns
	return nil
}

func (s *ArrowSink) WriteRows(rows sas7bdat.RowMatrix) error {
	series, err := Transpose(s.columns, rows)
	if err != nil {
		return err
	}

	for j, ser := range series {
		valid := make([]bool, ser.Length())
		for i := range valid {
			valid[i] = !ser.IsMissing(i)
		}
		switch fb := s.b.Field(j).(type) {
		case *array.Float64Builder:
			x, _, err := ser.AsFloat64Slice()
			if err != nil {
				return err
			}
			fb.AppendValues(x, valid)
		case *array.StringBuilder:
			x, _, err := ser.AsStringSlice()
			if err != nil {
				return err
			}
			fb.AppendValues(x, valid)
		}
	}

	rec := s.b.NewRecord()
	defer rec.Release()
	if err := s.w.Write(rec); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return nil
}

func (s *ArrowSink) Close() error {
	var err error
	if s.w != nil {
		err = s.w.Close()
		s.b.Release()
		s.w = nil
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
		s.closer = nil
	}
	return err
}
