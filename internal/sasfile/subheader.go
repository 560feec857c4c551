package sasfile

import (
	"bytes"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/defineEditor/sas7bdat/decode"
)

type pointer struct {
	offset      int
	length      int
	compression int
	ptype       int
}

// textRef locates a string in a column text block.
type textRef struct {
	index  int
	offset int
	length int
}

type attribute struct {
	offset  int
	width   int
	numeric bool
}

// layout collects what the metadata subheaders say about the rows.
type layout struct {
	hdr    *Header
	logger log.Logger

	rowLength   int
	rowCount    int
	colCountP1  int
	colCountP2  int
	mixRowCount int
	columnCount int
	compression decode.Compression

	fileLabel *textRef
	texts     [][]byte
	names     []textRef
	attrs     []attribute
	formats   []textRef
	labels    []textRef
}

func newLayout(hdr *Header, logger log.Logger) *layout {
	return &layout{hdr: hdr, logger: logger}
}

// readPointers reads the subheader pointer table of a page.
func (l *layout) readPointers(p page, count int) ([]pointer, error) {
	il := l.hdr.intLength
	ptrs := make([]pointer, 0, count)
	for i := 0; i < count; i++ {
		base := l.hdr.pageBitOffset + pointersOffset + i*l.hdr.pointerLength
		var ptr pointer
		var err error
		if ptr.offset, err = p.uint(base, il); err != nil {
			return nil, err
		}
		if ptr.length, err = p.uint(base+il, il); err != nil {
			return nil, err
		}
		if ptr.compression, err = p.uint(base+2*il, 1); err != nil {
			return nil, err
		}
		if ptr.ptype, err = p.uint(base+2*il+1, 1); err != nil {
			return nil, err
		}
		ptrs = append(ptrs, ptr)
	}
	return ptrs, nil
}

// readMetaPage processes the metadata subheaders of a page and returns
// the pointers to rows stored as subheaders.
func (l *layout) readMetaPage(p page, count int) ([]pointer, error) {
	ptrs, err := l.readPointers(p, count)
	if err != nil {
		return nil, err
	}

	var rows []pointer
	for _, ptr := range ptrs {
		if ptr.length == 0 || ptr.compression == truncatedSubheader {
			continue
		}
		sig, err := p.bytes(ptr.offset, l.hdr.intLength)
		if err != nil {
			return nil, err
		}
		kind, ok := signatures[string(sig)]
		if !ok {
			if l.compression != decode.CompressNone &&
				(ptr.compression == compressedSubheader || ptr.compression == 0) &&
				ptr.ptype == compressedDataType {
				kind = kindData
			} else {
				level.Debug(l.logger).Log("msg", "skipping unknown subheader", "signature", sig, "offset", ptr.offset)
				continue
			}
		}

		if kind == kindData {
			rows = append(rows, ptr)
			continue
		}
		if err := l.process(kind, p, ptr.offset, ptr.length); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (l *layout) process(kind subheaderKind, p page, off, length int) error {
	switch kind {
	case kindRowSize:
		return l.rowSize(p, off, length)
	case kindColumnSize:
		return l.columnSize(p, off)
	case kindColumnText:
		return l.columnText(p, off, length)
	case kindColumnName:
		return l.columnName(p, off, length)
	case kindColumnAttributes:
		return l.columnAttributes(p, off, length)
	case kindFormatAndLabel:
		return l.formatAndLabel(p, off)
	}
	// subheader counts and column lists carry nothing we use
	return nil
}

func (l *layout) rowSize(p page, off, length int) error {
	il := l.hdr.intLength
	fields := []struct {
		dst  *int
		mult int
	}{
		{&l.rowLength, rowLengthMultiplier},
		{&l.rowCount, rowCountMultiplier},
		{&l.colCountP1, colCountP1Multiplier},
		{&l.colCountP2, colCountP2Multiplier},
		{&l.mixRowCount, mixRowCountMultiplier},
	}
	for _, f := range fields {
		v, err := p.int(off+f.mult*il, il)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	if l.rowLength < 0 || l.rowCount < 0 {
		return decode.Errorf(decode.StatusParse, "invalid row size subheader (row length %d, row count %d)", l.rowLength, l.rowCount)
	}

	if length >= fileLabelFromEnd {
		ref, err := readTextRef(p, off+length-fileLabelFromEnd)
		if err != nil {
			return err
		}
		if ref.length > 0 {
			l.fileLabel = &ref
		}
	}
	return nil
}

func (l *layout) columnSize(p page, off int) error {
	il := l.hdr.intLength
	n, err := p.int(off+il, il)
	if err != nil {
		return err
	}
	l.columnCount = n
	if l.colCountP1+l.colCountP2 != n {
		level.Warn(l.logger).Log("msg", "column count mismatch", "p1", l.colCountP1, "p2", l.colCountP2, "count", n)
	}
	return nil
}

func (l *layout) columnText(p page, off, length int) error {
	il := l.hdr.intLength
	block, err := p.bytes(off+il, length-il)
	if err != nil {
		return err
	}
	l.texts = append(l.texts, append([]byte(nil), block...))

	if len(l.texts) == 1 {
		s := string(block)
		switch {
		case strings.Contains(s, rleSignature):
			l.compression = decode.CompressRows
		case strings.Contains(s, rdcSignature):
			l.compression = decode.CompressBinary
		}
	}
	return nil
}

func readTextRef(p page, off int) (textRef, error) {
	var ref textRef
	var err error
	if ref.index, err = p.uint(off, 2); err != nil {
		return ref, err
	}
	if ref.offset, err = p.uint(off+2, 2); err != nil {
		return ref, err
	}
	if ref.length, err = p.uint(off+4, 2); err != nil {
		return ref, err
	}
	return ref, nil
}

func (l *layout) columnName(p page, off, length int) error {
	il := l.hdr.intLength
	count := (length - 2*il - 12) / columnNamePointerWidth
	for i := 0; i < count; i++ {
		ref, err := readTextRef(p, off+il+columnNamePointerWidth*(i+1))
		if err != nil {
			return err
		}
		l.names = append(l.names, ref)
	}
	return nil
}

func (l *layout) columnAttributes(p page, off, length int) error {
	il := l.hdr.intLength
	count := (length - 2*il - 12) / (il + 8)
	for i := 0; i < count; i++ {
		entry := i * (il + 8)
		var a attribute
		var err error
		if a.offset, err = p.uint(off+il+8+entry, il); err != nil {
			return err
		}
		if a.width, err = p.uint(off+2*il+8+entry, 4); err != nil {
			return err
		}
		t, err := p.uint(off+2*il+columnTypeOffset+entry, 1)
		if err != nil {
			return err
		}
		a.numeric = t == 1
		l.attrs = append(l.attrs, a)
	}
	return nil
}

func (l *layout) formatAndLabel(p page, off int) error {
	base := off + 3*l.hdr.intLength
	var format, label textRef
	var err error
	for _, f := range []struct {
		dst *int
		at  int
	}{
		{&format.index, formatIndexOffset},
		{&format.offset, formatOffsetOffset},
		{&format.length, formatLengthOffset},
		{&label.index, labelIndexOffset},
		{&label.offset, labelOffsetOffset},
		{&label.length, labelLengthOffset},
	} {
		if *f.dst, err = p.uint(base+f.at, 2); err != nil {
			return err
		}
	}
	l.formats = append(l.formats, format)
	l.labels = append(l.labels, label)
	return nil
}

// text resolves a reference into the text blocks.  Out-of-range block
// indexes are clamped to the last block, which some writers rely on.
func (l *layout) text(ref textRef, dec decoder) (string, error) {
	if ref.length == 0 || len(l.texts) == 0 {
		return "", nil
	}
	block := l.texts[min(ref.index, len(l.texts)-1)]
	if ref.offset+ref.length > len(block) {
		return "", decode.Errorf(decode.StatusParse, "text reference %d:%d+%d outside %d byte block",
			ref.index, ref.offset, ref.length, len(block))
	}
	return dec.text(bytes.TrimRight(block[ref.offset:ref.offset+ref.length], " \x00"))
}

type column struct {
	name   string
	label  string
	format string
	attribute
}

// columns resolves the collected subheaders into one entry per column.
func (l *layout) columns(dec decoder) ([]column, error) {
	n := len(l.attrs)
	if len(l.names) < n {
		return nil, decode.Errorf(decode.StatusParse, "%d column names for %d columns", len(l.names), n)
	}
	if l.columnCount != 0 && l.columnCount != n {
		level.Warn(l.logger).Log("msg", "column attributes do not match column count", "attributes", n, "count", l.columnCount)
	}

	cols := make([]column, n)
	for i := range cols {
		c := column{attribute: l.attrs[i]}
		if c.numeric && (c.width < 1 || c.width > 8) {
			return nil, decode.Errorf(decode.StatusParse, "numeric column %d has width %d", i, c.width)
		}
		if c.offset+c.width > l.rowLength {
			return nil, decode.Errorf(decode.StatusRowWidthMismatch, "column %d ends at byte %d of a %d byte row", i, c.offset+c.width, l.rowLength)
		}
		var err error
		if c.name, err = l.text(l.names[i], dec); err != nil {
			return nil, err
		}
		if i < len(l.formats) {
			if c.format, err = l.text(l.formats[i], dec); err != nil {
				return nil, err
			}
			if c.label, err = l.text(l.labels[i], dec); err != nil {
				return nil, err
			}
		}
		cols[i] = c
	}
	return cols, nil
}

func (l *layout) label(dec decoder) (string, error) {
	if l.fileLabel == nil {
		return "", nil
	}
	return l.text(*l.fileLabel, dec)
}
