package export

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/defineEditor/sas7bdat"
)

// DatasetJSONVersion is the version of the Dataset-JSON documents written.
const DatasetJSONVersion = "1.1.0"

type djColumn struct {
	ItemOID       string `json:"itemOID"`
	Name          string `json:"name"`
	Label         string `json:"label"`
	DataType      string `json:"dataType"`
	Length        int    `json:"length,omitempty"`
	DisplayFormat string `json:"displayFormat,omitempty"`
}

type djHeader struct {
	CreationDateTime       string                `json:"datasetJSONCreationDateTime"`
	Version                string                `json:"datasetJSONVersion"`
	FileOID                string                `json:"fileOID,omitempty"`
	DBLastModifiedDateTime string                `json:"dbLastModifiedDateTime,omitempty"`
	SourceSystem           sas7bdat.SourceSystem `json:"sourceSystem"`
	ItemGroupOID           string                `json:"itemGroupOID"`
	Records                int                   `json:"records"`
	Name                   string                `json:"name"`
	Label                  string                `json:"label"`
	Columns                []djColumn            `json:"columns"`
}

// DatasetJSONSink writes a CDISC Dataset-JSON document.  Rows are
// streamed, so the records count comes from the descriptor.
type DatasetJSONSink struct {
	w      *bufio.Writer
	closer io.Closer
	rows   int
	begun  bool

	// Now returns the document creation time.
	Now func() time.Time
}

// NewDatasetJSON returns a Dataset-JSON sink on w.  closer, when not nil,
// is closed by Close.
func NewDatasetJSON(w io.Writer, closer io.Closer) *DatasetJSONSink {
	return &DatasetJSONSink{w: bufio.NewWriter(w), closer: closer, Now: time.Now}
}

// djDataType maps a logical type to a Dataset-JSON data type.  Text and
// unrecognised types are strings.
func djDataType(t sas7bdat.LogicalType) string {
	if t.IsNumeric() {
		return string(t)
	}
	return "string"
}

func isoTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02T15:04:05")
}

func (s *DatasetJSONSink) Begin(desc *sas7bdat.DatasetDescriptor) error {
	h := djHeader{
		CreationDateTime: s.Now().UTC().Format("2006-01-02T15:04:05"),
		Version:          DatasetJSONVersion,
		FileOID:          desc.FilePath,
		SourceSystem:     desc.SourceSystem,
		ItemGroupOID:     "IG." + desc.Name,
		Records:          desc.Records,
		Name:             desc.Name,
		Label:            desc.Label,
		Columns:          make([]djColumn, len(desc.Columns)),
	}
	if desc.ModifiedDateTime != 0 {
		h.DBLastModifiedDateTime = isoTime(desc.ModifiedDateTime)
	}
	for i, c := range desc.Columns {
		h.Columns[i] = djColumn{
			ItemOID:       c.ItemOID,
			Name:          c.Name,
			Label:         c.Label,
			DataType:      djDataType(c.DataType),
			Length:        c.Length,
			DisplayFormat: c.DisplayFormat,
		}
	}

	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	// Reopen the object to append the rows array.
	b = append(b[:len(b)-1], `,"rows":[`...)
	s.begun = true
	_, err = s.w.Write(b)
	return err
}

func (s *DatasetJSONSink) WriteRows(rows sas7bdat.RowMatrix) error {
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if s.rows > 0 {
			if err := s.w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := s.w.Write(b); err != nil {
			return err
		}
		s.rows++
	}
	return nil
}

func (s *DatasetJSONSink) Close() error {
	var err error
	if s.begun {
		_, err = s.w.WriteString("]}\n")
	}
	if ferr := s.w.Flush(); err == nil {
		err = ferr
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
