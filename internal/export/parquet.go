package export

import (
	"encoding/json"
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/defineEditor/sas7bdat"
)

// ParquetSink writes a Parquet file with one optional column per
// variable: DOUBLE for numeric columns and UTF8 BYTE_ARRAY otherwise.
// Pages are Snappy compressed.
type ParquetSink struct {
	path  string
	names []string
	fw    source.ParquetFile
	pw    *writer.JSONWriter
}

// NewParquet returns a sink writing to the file at path.
func NewParquet(path string) *ParquetSink {
	return &ParquetSink{path: path}
}

type parquetField struct {
	Tag string `json:"Tag"`
}

type parquetSchema struct {
	Tag    string         `json:"Tag"`
	Fields []parquetField `json:"Fields"`
}

// ParquetSchema returns the JSON schema used for columns.
func ParquetSchema(columns []sas7bdat.ColumnDescriptor) (string, error) {
	sch := parquetSchema{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, c := range columns {
		var tag string
		if c.DataType.IsNumeric() {
			tag = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", c.Name)
		} else {
			tag = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", c.Name)
		}
		sch.Fields = append(sch.Fields, parquetField{Tag: tag})
	}
	b, err := json.Marshal(sch)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *ParquetSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	schema, err := ParquetSchema(desc.Columns)
	if err != nil {
		return err
	}

	fw, err := local.NewLocalFileWriter(s.path)
	if err != nil {
		return fmt.Errorf("can't create local file %s: %w", s.path, err)
	}
	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("can't create parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	s.fw, s.pw = fw, pw
	s.names = desc.ColumnNames()
	return nil
}

func (s *ParquetSink) WriteRows(rows sas7bdat.RowMatrix) error {
	rec := make(map[string]any, len(s.names))
	for _, r := range rows {
		for j, name := range s.names {
			rec[name] = r[j].Value()
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := s.pw.Write(string(b)); err != nil {
			return fmt.Errorf("%s write error: %w", s.path, err)
		}
	}
	return nil
}

func (s *ParquetSink) Close() error {
	if s.pw == nil {
		return nil
	}
	err := s.pw.WriteStop()
	if err != nil {
		err = fmt.Errorf("%s WriteStop error: %w", s.path, err)
	}
	if cerr := s.fw.Close(); err == nil {
		err = cerr
	}
	s.pw = nil
	return err
}
