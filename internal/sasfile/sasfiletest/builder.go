// Package sasfiletest writes small SAS7BDAT files for tests.
//
// The files use one layout SAS itself produces: a header, metadata pages
// holding the row size, column size, column text, column name, column
// attributes and one format-and-label subheader per column, then data
// pages.  With Compress set the rows are RLE compressed and stored as
// subheaders on metadata pages instead.
package sasfiletest

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding"
)

// Column describes one variable of a generated file.
type Column struct {
	Name    string
	Label   string
	Format  string
	Numeric bool
	// Width is the storage width.  Numeric columns default to 8 and may
	// be truncated to 3..7 bytes; text columns default to their longest
	// value.
	Width int
}

// File is the content of a generated file.  Row cells are strings for
// text columns and float64, int or nil (missing) for numeric columns.
type File struct {
	Name         string
	Label        string
	Release      string
	EncodingCode byte
	// Encoder, when set, encodes every string written to the file.
	Encoder  *encoding.Encoder
	Created  time.Time
	Modified time.Time

	Bit32     bool
	BigEndian bool
	Compress  bool

	PageLength  int
	RowsPerPage int

	Columns []Column
	Rows    [][]any
}

// Defaults filled in by Bytes.
const (
	DefaultRelease      = "9.0401M6"
	DefaultEncodingCode = 20 // UTF-8
	DefaultPageLength   = 65536
)

var magic = []byte("\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\xc2\xea\x81\x60" +
	"\xb3\x14\x11\xcf\xbd\x92\x08\x00\x09\xc7\x31\x8c\x18\x1f\x10\x11")

// Little-endian 64-bit signatures.  32-bit files use the first four
// bytes; big-endian files reverse them.
var (
	sigRowSize    = []byte("\xF7\xF7\xF7\xF7\x00\x00\x00\x00")
	sigColumnSize = []byte("\xF6\xF6\xF6\xF6\x00\x00\x00\x00")
	sigColumnText = []byte("\xFD\xFF\xFF\xFF\xFF\xFF\xFF\xFF")
	sigColumnName = []byte("\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF")
	sigAttributes = []byte("\xFC\xFF\xFF\xFF\xFF\xFF\xFF\xFF")
	sigFormat     = []byte("\xFE\xFB\xFF\xFF\xFF\xFF\xFF\xFF")
)

const sasEpoch = 315619200

type subheader struct {
	data        []byte
	compression byte
	ptype       byte
}

type writer struct {
	f            *File
	order        binary.ByteOrder
	il, bo, pl   int
	headerLength int
	pageLength   int
	widths       []int
	offsets      []int
	rowLength    int
}

// Bytes returns the encoded file.
func (f *File) Bytes() ([]byte, error) {
	w := &writer{f: f, order: binary.LittleEndian, il: 8, bo: 32, pl: 24, headerLength: 8192}
	if f.BigEndian {
		w.order = binary.BigEndian
	}
	if f.Bit32 {
		w.il, w.bo, w.pl, w.headerLength = 4, 16, 12, 1024
	}
	w.pageLength = f.PageLength
	if w.pageLength == 0 {
		w.pageLength = DefaultPageLength
	}
	if err := w.layoutRows(); err != nil {
		return nil, err
	}

	meta, err := w.metadata()
	if err != nil {
		return nil, err
	}
	rows := make([][]byte, len(f.Rows))
	for i, r := range f.Rows {
		if rows[i], err = w.row(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}

	var pages [][]byte
	if f.Compress {
		for _, r := range rows {
			c := rle(r)
			if len(c) < len(r) {
				meta = append(meta, subheader{data: c, compression: 4, ptype: 1})
			} else {
				meta = append(meta, subheader{data: r, ptype: 1})
			}
		}
		if pages, err = w.metaPages(meta); err != nil {
			return nil, err
		}
	} else {
		if pages, err = w.metaPages(meta); err != nil {
			return nil, err
		}
		pages = append(pages, w.dataPages(rows)...)
	}

	out := w.header(len(pages))
	for _, p := range pages {
		out = append(out, p...)
	}
	return out, nil
}

// Write writes the encoded file to path.
func (f *File) Write(path string) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// WriteTemp writes f to name in a temporary directory of t and returns
// the path.
func WriteTemp(t testing.TB, name string, f *File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := f.Write(path); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func (w *writer) encode(s string) ([]byte, error) {
	if w.f.Encoder == nil {
		return []byte(s), nil
	}
	return w.f.Encoder.Bytes([]byte(s))
}

func (w *writer) sig(le []byte) []byte {
	s := make([]byte, w.il)
	copy(s, le[:w.il])
	if w.f.BigEndian {
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
	}
	return s
}

func (w *writer) putInt(b []byte, off, width, v int) {
	switch width {
	case 1:
		b[off] = byte(v)
	case 2:
		w.order.PutUint16(b[off:], uint16(v))
	case 4:
		w.order.PutUint32(b[off:], uint32(v))
	case 8:
		w.order.PutUint64(b[off:], uint64(v))
	}
}

func (w *writer) putFloat(b []byte, off int, v float64) {
	w.order.PutUint64(b[off:], math.Float64bits(v))
}

func sasSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix() + sasEpoch)
}

func pad(b []byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, b)
	return out
}

func (w *writer) header(pageCount int) []byte {
	f := w.f
	h := make([]byte, w.headerLength)
	copy(h, magic)

	a1, a2 := 0, 0
	h[32], h[35] = '2', '2'
	if !f.Bit32 {
		h[32], h[35] = '3', '3'
		a1, a2 = 4, 4
	}
	t := a1 + a2
	if !f.BigEndian {
		h[37] = 0x01
	}
	h[39] = '1'
	h[70] = f.EncodingCode
	if f.EncodingCode == 0 {
		h[70] = DefaultEncodingCode
	}
	copy(h[84:], "SAS FILE")
	name, _ := w.encode(f.Name)
	copy(h[92:], pad(name, 64))
	copy(h[156:], "DATA    ")

	w.putFloat(h, 164+a1, sasSeconds(f.Created))
	w.putFloat(h, 172+a1, sasSeconds(f.Modified))
	w.putInt(h, 196+a1, 4, w.headerLength)
	w.putInt(h, 200+a1, 4, w.pageLength)
	w.putInt(h, 204+a1, 4, pageCount)

	release := f.Release
	if release == "" {
		release = DefaultRelease
	}
	copy(h[216+t:], pad([]byte(release), 8))
	copy(h[224+t:], pad([]byte("X64_7PRO"), 16))
	copy(h[240+t:], "4.18")
	copy(h[272+t:], "Linux")
	return h
}

// layoutRows assigns each column its offset and width within a row.
func (w *writer) layoutRows() error {
	w.widths = make([]int, len(w.f.Columns))
	w.offsets = make([]int, len(w.f.Columns))
	for i, c := range w.f.Columns {
		width := c.Width
		switch {
		case c.Numeric && width == 0:
			width = 8
		case c.Numeric && (width < 3 || width > 8):
			return fmt.Errorf("column %s: numeric width %d", c.Name, width)
		case width == 0:
			width = 1
			for _, r := range w.f.Rows {
				if s, ok := r[i].(string); ok {
					b, err := w.encode(s)
					if err != nil {
						return err
					}
					width = max(width, len(b))
				}
			}
		}
		w.widths[i] = width
		w.offsets[i] = w.rowLength
		w.rowLength += width
	}
	return nil
}

func (w *writer) row(cells []any) ([]byte, error) {
	if len(cells) != len(w.f.Columns) {
		return nil, fmt.Errorf("%d cells for %d columns", len(cells), len(w.f.Columns))
	}
	b := make([]byte, w.rowLength)
	for i, c := range w.f.Columns {
		dst := b[w.offsets[i] : w.offsets[i]+w.widths[i]]
		if !c.Numeric {
			s, _ := cells[i].(string)
			enc, err := w.encode(s)
			if err != nil {
				return nil, err
			}
			if len(enc) > len(dst) {
				return nil, fmt.Errorf("column %s: %q is wider than %d bytes", c.Name, s, len(dst))
			}
			copy(dst, pad(enc, len(dst)))
			continue
		}

		var v float64
		switch x := cells[i].(type) {
		case nil:
			v = math.NaN()
		case float64:
			v = x
		case int:
			v = float64(x)
		default:
			return nil, fmt.Errorf("column %s: unsupported numeric cell %T", c.Name, x)
		}
		var full [8]byte
		w.order.PutUint64(full[:], math.Float64bits(v))
		if w.order == binary.LittleEndian {
			copy(dst, full[8-len(dst):])
		} else {
			copy(dst, full[:len(dst)])
		}
	}
	return b, nil
}

func (w *writer) metadata() ([]subheader, error) {
	il := w.il
	n := len(w.f.Columns)

	var blob []byte
	blob = append(blob, make([]byte, 8)...)
	if w.f.Compress {
		blob = append(blob, "SASYZCRL"...)
	}
	type ref struct{ off, length int }
	add := func(s string) (ref, error) {
		if s == "" {
			return ref{}, nil
		}
		b, err := w.encode(s)
		if err != nil {
			return ref{}, err
		}
		r := ref{len(blob), len(b)}
		blob = append(blob, b...)
		for len(blob)%4 != 0 {
			blob = append(blob, ' ')
		}
		return r, nil
	}

	label, err := add(w.f.Label)
	if err != nil {
		return nil, err
	}
	names := make([]ref, n)
	formats := make([]ref, n)
	labels := make([]ref, n)
	for i, c := range w.f.Columns {
		if names[i], err = add(c.Name); err != nil {
			return nil, err
		}
		if formats[i], err = add(c.Format); err != nil {
			return nil, err
		}
		if labels[i], err = add(c.Label); err != nil {
			return nil, err
		}
	}
	w.putInt(blob, 0, 2, len(blob))

	rowSizeLength := 808
	if w.f.Bit32 {
		rowSizeLength = 480
	}
	rowSize := make([]byte, rowSizeLength)
	copy(rowSize, w.sig(sigRowSize))
	w.putInt(rowSize, 5*il, il, w.rowLength)
	w.putInt(rowSize, 6*il, il, len(w.f.Rows))
	w.putInt(rowSize, 9*il, il, n)
	w.putInt(rowSize, 10*il, il, 0)
	at := rowSizeLength - 130
	w.putInt(rowSize, at+2, 2, label.off)
	w.putInt(rowSize, at+4, 2, label.length)

	colSize := make([]byte, 3*il)
	copy(colSize, w.sig(sigColumnSize))
	w.putInt(colSize, il, il, n)

	text := append(w.sig(sigColumnText), blob...)

	colName := make([]byte, 2*il+12+8*n)
	copy(colName, w.sig(sigColumnName))
	for i, r := range names {
		p := il + 8*(i+1)
		w.putInt(colName, p+2, 2, r.off)
		w.putInt(colName, p+4, 2, r.length)
	}

	attrs := make([]byte, 2*il+12+n*(il+8))
	copy(attrs, w.sig(sigAttributes))
	for i, c := range w.f.Columns {
		e := i * (il + 8)
		w.putInt(attrs, il+8+e, il, w.offsets[i])
		w.putInt(attrs, 2*il+8+e, 4, w.widths[i])
		attrs[2*il+14+e] = 2
		if c.Numeric {
			attrs[2*il+14+e] = 1
		}
	}

	subs := []subheader{{data: rowSize}, {data: colSize}, {data: text}, {data: colName}, {data: attrs}}
	for i := range w.f.Columns {
		fl := make([]byte, 64)
		copy(fl, w.sig(sigFormat))
		base := 3 * il
		w.putInt(fl, base+24, 2, formats[i].off)
		w.putInt(fl, base+26, 2, formats[i].length)
		w.putInt(fl, base+30, 2, labels[i].off)
		w.putInt(fl, base+32, 2, labels[i].length)
		subs = append(subs, subheader{data: fl})
	}
	return subs, nil
}

// metaPages packs subheaders into metadata pages, pointers first and
// subheader bodies after them.
func (w *writer) metaPages(subs []subheader) ([][]byte, error) {
	var pages [][]byte
	for len(subs) > 0 {
		k, used := 0, 0
		for k < len(subs) {
			start := align8(w.bo + 8 + (k+1)*w.pl)
			if start+used+align8(len(subs[k].data)) > w.pageLength {
				break
			}
			used += align8(len(subs[k].data))
			k++
		}
		if k == 0 {
			return nil, fmt.Errorf("subheader of %d bytes does not fit a %d byte page", len(subs[0].data), w.pageLength)
		}

		p := make([]byte, w.pageLength)
		w.putInt(p, w.bo, 2, 0)
		w.putInt(p, w.bo+2, 2, k)
		w.putInt(p, w.bo+4, 2, k)
		off := align8(w.bo + 8 + k*w.pl)
		for i, s := range subs[:k] {
			ptr := w.bo + 8 + i*w.pl
			w.putInt(p, ptr, w.il, off)
			w.putInt(p, ptr+w.il, w.il, len(s.data))
			p[ptr+2*w.il] = s.compression
			p[ptr+2*w.il+1] = s.ptype
			copy(p[off:], s.data)
			off += align8(len(s.data))
		}
		pages = append(pages, p)
		subs = subs[k:]
	}
	return pages, nil
}

func (w *writer) dataPages(rows [][]byte) [][]byte {
	perPage := (w.pageLength - w.bo - 8) / max(w.rowLength, 1)
	if w.f.RowsPerPage > 0 {
		perPage = min(perPage, w.f.RowsPerPage)
	}
	var pages [][]byte
	for len(rows) > 0 {
		k := min(perPage, len(rows))
		p := make([]byte, w.pageLength)
		w.putInt(p, w.bo, 2, 256)
		w.putInt(p, w.bo+2, 2, k)
		for i, r := range rows[:k] {
			copy(p[w.bo+8+i*w.rowLength:], r)
		}
		pages = append(pages, p)
		rows = rows[k:]
	}
	return pages
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// rle compresses a row with the run commands of SASYZCRL files: runs of
// blanks and zeros, runs of any other byte, and literal copies.  Runs
// longer than the one-byte commands allow use the two-byte forms.
func rle(row []byte) []byte {
	var out, lit []byte
	flush := func() {
		for len(lit) > 0 {
			n := min(len(lit), 16)
			out = append(out, 0x80|byte(n-1))
			out = append(out, lit[:n]...)
			lit = lit[n:]
		}
	}
	for i := 0; i < len(row); {
		j := i
		for j < len(row) && row[j] == row[i] && j-i < maxRun {
			j++
		}
		n := j - i
		switch {
		case (row[i] == ' ' || row[i] == 0) && n > 17:
			flush()
			k := n - 17
			cmd := byte(0x60)
			if row[i] == 0 {
				cmd = 0x70
			}
			out = append(out, cmd|byte(k>>8), byte(k))
		case row[i] == ' ' && n >= 2:
			flush()
			out = append(out, 0xE0|byte(n-2))
		case row[i] == 0 && n >= 2:
			flush()
			out = append(out, 0xF0|byte(n-2))
		case n > 18:
			flush()
			k := n - 18
			out = append(out, 0x40|byte(k>>8), byte(k), row[i])
		case n >= 3:
			flush()
			out = append(out, 0xC0|byte(n-3), row[i])
		default:
			lit = append(lit, row[i:j]...)
		}
		i = j
	}
	flush()
	return out
}

// maxRun is the longest run one command can hold: 17 + 0xFFF.
const maxRun = 17 + 0xFFF
