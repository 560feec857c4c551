// Package export writes the content of a SAS7BDAT file to other formats.
//
// A Sink receives the descriptor once, then the rows in chunks, then a
// Close.  Copy drives a sink from a sas7bdat.Dataset one chunk at a time
// so that large files are never held in memory whole.
package export

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/defineEditor/sas7bdat"
)

// Sink is an output format.
type Sink interface {
	Begin(desc *sas7bdat.DatasetDescriptor) error
	WriteRows(rows sas7bdat.RowMatrix) error
	Close() error
}

// Format names an output format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatDatasetJSON Format = "datasetjson"
	FormatParquet     Format = "parquet"
	FormatArrow       Format = "arrow"
	FormatSQLite      Format = "sqlite"
	FormatColumns     Format = "columns"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatDatasetJSON, FormatParquet, FormatArrow, FormatSQLite, FormatColumns}

// Options tune the sinks created by New.
type Options struct {
	// Table is the SQLite table name; the dataset name by default.
	Table string
	// ColumnMode is "text" or "binary" for FormatColumns.
	ColumnMode string
}

// ParseFormat returns the format named s, ignoring case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unknown export format %q", s)
	}
	return f, nil
}

// New creates a sink for format writing to out.  For the stream formats
// (csv, datasetjson, arrow) an empty out or "-" writes to stdout; the
// others need a path.
func New(format Format, out string, stdout io.Writer, opts Options) (Sink, error) {
	switch format {
	case FormatCSV, FormatDatasetJSON, FormatArrow:
		w, closer, err := openStream(out, stdout)
		if err != nil {
			return nil, err
		}
		switch format {
		case FormatCSV:
			return NewCSV(w, closer), nil
		case FormatDatasetJSON:
			return NewDatasetJSON(w, closer), nil
		}
		return NewArrow(w, closer), nil
	}

	if out == "" || out == "-" {
		return nil, fmt.Errorf("%s export needs an output path", format)
	}
	switch format {
	case FormatParquet:
		return NewParquet(out), nil
	case FormatSQLite:
		return NewSQLite(out, opts.Table), nil
	case FormatColumns:
		mode := ColumnMode(opts.ColumnMode)
		if mode == "" {
			mode = ColumnText
		}
		if mode != ColumnText && mode != ColumnBinary {
			return nil, fmt.Errorf("column mode must be either 'text' or 'binary', not %q", opts.ColumnMode)
		}
		return NewColumnize(out, mode), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

func openStream(out string, stdout io.Writer) (io.Writer, io.Closer, error) {
	if out == "" || out == "-" {
		return stdout, nil, nil
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", out, err)
	}
	return f, f, nil
}

// aborter is implemented by sinks that can discard what they have
// written so far.
type aborter interface {
	Abort()
}

// Copy writes every row of ds to s in chunks of bufferLength rows and
// closes s.  It returns the number of rows written.  On failure a sink
// that supports it is aborted before being closed.
func Copy(ds *sas7bdat.Dataset, s Sink, bufferLength int) (n int, err error) {
	defer func() {
		if a, ok := s.(aborter); ok && err != nil {
			a.Abort()
		}
		if cerr := s.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if bufferLength <= 0 {
		bufferLength = sas7bdat.DefaultBufferLength
	}
	if err := s.Begin(ds.Metadata()); err != nil {
		return 0, err
	}

	chunk := make(sas7bdat.RowMatrix, 0, bufferLength)
	for r, err := range ds.Records(0, bufferLength) {
		if err != nil {
			return n, err
		}
		chunk = append(chunk, r)
		if len(chunk) == bufferLength {
			if err := s.WriteRows(chunk); err != nil {
				return n, err
			}
			n += len(chunk)
			chunk = chunk[:0]
		}
	}
	if len(chunk) > 0 {
		if err := s.WriteRows(chunk); err != nil {
			return n, err
		}
		n += len(chunk)
	}
	return n, nil
}
