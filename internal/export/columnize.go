package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/defineEditor/sas7bdat"
)

// ColumnMode selects how Columnize stores numeric data.
type ColumnMode string

const (
	// ColumnText writes one value per line; missing values are empty
	// lines.
	ColumnText ColumnMode = "text"
	// ColumnBinary writes little-endian float64 values; missing values
	// are NaN.
	ColumnBinary ColumnMode = "binary"
)

// ColumnizeSink saves the data of each column into a separate file
// named after the column position, inside a directory.  Character data
// is always stored as text, one value per line.  A columns.txt file
// lists the position and name of every column.
type ColumnizeSink struct {
	dir     string
	mode    ColumnMode
	columns []sas7bdat.ColumnDescriptor
	files   []*os.File
	writers []*bufio.Writer
}

// NewColumnize returns a sink writing into dir, which is created if
// needed.
func NewColumnize(dir string, mode ColumnMode) *ColumnizeSink {
	return &ColumnizeSink{dir: dir, mode: mode}
}

func (s *ColumnizeSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	cf, err := os.Create(filepath.Join(s.dir, "columns.txt"))
	if err != nil {
		return fmt.Errorf("unable to create file in %s: %w", s.dir, err)
	}
	w := bufio.NewWriter(cf)
	for i, c := range desc.Columns {
		fmt.Fprintf(w, "%d,%s\n", i, c.Name)
	}
	err = w.Flush()
	if cerr := cf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	s.columns = desc.Columns
	for j := range desc.Columns {
		f, err := os.Create(filepath.Join(s.dir, strconv.Itoa(j)))
		if err != nil {
			return fmt.Errorf("unable to create file for column %d: %w", j, err)
		}
		s.files = append(s.files, f)
		s.writers = append(s.writers, bufio.NewWriter(f))
	}
	return nil
}

func (s *ColumnizeSink) WriteRows(rows sas7bdat.RowMatrix) error {
	series, err := Transpose(s.columns, rows)
	if err != nil {
		return err
	}

	var buf [8]byte
	for j, ser := range series {
		w := s.writers[j]
		switch x := ser.Data().(type) {
		case []float64:
			for i, v := range x {
				if s.mode == ColumnBinary {
					if ser.IsMissing(i) {
						v = math.NaN()
					}
					binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
					w.Write(buf[:])
				} else if ser.IsMissing(i) {
					w.WriteByte('\n')
				} else {
					w.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
					w.WriteByte('\n')
				}
			}
		case []string:
			for _, v := range x {
				w.WriteString(v)
				w.WriteByte('\n')
			}
		}
	}

	// bufio keeps the first error and reports it from every later call.
	for j, w := range s.writers {
		if _, err := w.Write(nil); err != nil {
			return fmt.Errorf("writing column %d: %w", j, err)
		}
	}
	return nil
}

func (s *ColumnizeSink) Close() error {
	var err error
	for j, f := range s.files {
		if ferr := s.writers[j].Flush(); err == nil {
			err = ferr
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	s.files, s.writers = nil, nil
	return err
}
