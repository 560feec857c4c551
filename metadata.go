package sas7bdat

import (
	"strconv"

	"github.com/defineEditor/sas7bdat/decode"
)

const sourceSystemName = "SAS"

var compressionNames = map[decode.Compression]string{
	decode.CompressNone:   "NONE",
	decode.CompressRows:   "ROWS",
	decode.CompressBinary: "BINARY",
}

// CompressionName returns the descriptor name of a compression code;
// codes outside the known set are "UNKNOWN".
func CompressionName(c decode.Compression) string {
	if s, ok := compressionNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// MetadataBuilder builds a DatasetDescriptor from one metadata event and
// the variable events that follow it.
type MetadataBuilder struct {
	desc     *DatasetDescriptor
	varCount int
	seen     int
}

// NewMetadataBuilder returns an empty builder.
func NewMetadataBuilder() *MetadataBuilder {
	return &MetadataBuilder{}
}

// OnMetadata handles the metadata event.
func (b *MetadataBuilder) OnMetadata(md *decode.Metadata) error {
	if b.desc != nil {
		return contractViolation("metadata reported twice")
	}
	if md.VarCount < 0 || md.RowCount < 0 {
		return contractViolation("negative counts (%d rows, %d variables)", md.RowCount, md.VarCount)
	}

	label := md.TableName
	if label == "" {
		label = md.FileLabel
	}

	d := &DatasetDescriptor{
		Label:            label,
		Records:          md.RowCount,
		CreationDateTime: md.CreationTime,
		ModifiedDateTime: md.ModifiedTime,
		SourceSystem:     SourceSystem{Name: sourceSystemName},
		Compression:      CompressionName(md.Compression),
		Encoding:         md.Encoding,
		Is64Bit:          md.Is64Bit,
		Columns:          make([]ColumnDescriptor, md.VarCount),
	}
	if md.FormatVersion != 0 {
		d.SourceSystem.Version = strconv.Itoa(md.FormatVersion)
	}
	if md.FormatVersion > 0 {
		d.FileFormatVersion = md.FormatVersion
	}

	b.desc = d
	b.varCount = md.VarCount
	return nil
}

// OnVariable handles a variable event.  Indexes must arrive in order,
// starting at 0, without gaps or repeats.
func (b *MetadataBuilder) OnVariable(index int, v *decode.Variable) error {
	if b.desc == nil {
		return contractViolation("variable %d reported before metadata", index)
	}
	if index != b.seen || index >= b.varCount {
		return contractViolation("variable index %d, expected %d of %d", index, b.seen, b.varCount)
	}

	col := ColumnDescriptor{
		ItemOID:  ItemOID(v.Name),
		Name:     v.Name,
		Label:    v.Label,
		DataType: MapType(v.Type),
	}
	if col.Label == "" {
		col.Label = v.Name
	}
	if v.StorageWidth > 0 {
		col.Length = v.StorageWidth
	}
	if v.Format != "" {
		col.DisplayFormat = v.Format
	}

	b.desc.Columns[index] = col
	b.seen++
	return nil
}

// ColumnCount returns the variable count reported by the metadata event.
func (b *MetadataBuilder) ColumnCount() int {
	return b.varCount
}

// Descriptor returns the finished descriptor.  It fails when the pass did
// not report metadata or reported fewer variables than announced.
func (b *MetadataBuilder) Descriptor() (*DatasetDescriptor, error) {
	if b.desc == nil {
		return nil, contractViolation("no metadata reported")
	}
	if b.seen != b.varCount {
		return nil, contractViolation("%d of %d variables reported", b.seen, b.varCount)
	}
	return b.desc, nil
}
