package export

import (
	"encoding/csv"
	"io"

	"github.com/defineEditor/sas7bdat"
)

// CSVSink writes a header of column names and one record per row.  Null
// cells are empty fields.
type CSVSink struct {
	w      *csv.Writer
	closer io.Closer
	record []string
}

// NewCSV returns a CSV sink on w.  closer, when not nil, is closed by
// Close.
func NewCSV(w io.Writer, closer io.Closer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w), closer: closer}
}

func (s *CSVSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	s.record = make([]string, len(desc.Columns))
	return s.w.Write(desc.ColumnNames())
}

func (s *CSVSink) WriteRows(rows sas7bdat.RowMatrix) error {
	for _, r := range rows {
		for j, c := range r {
			if c.IsNull() {
				s.record[j] = ""
			} else {
				s.record[j] = c.String()
			}
		}
		if err := s.w.Write(s.record); err != nil {
			return err
		}
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
