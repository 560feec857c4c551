// Package sasfile decodes SAS7BDAT files.
//
// The reader makes a single pass over the pages of a file and reports
// what it finds through the callbacks of package decode: the metadata
// once the metadata subheaders have been read, one variable per column,
// then the cells of each row in the requested window.
//
// See also:
// https://cran.r-project.org/web/packages/sas7bdat/vignettes/sas7bdat.pdf
package sasfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/defineEditor/sas7bdat/decode"
)

const expectedHeaderLength64 = 8192

// Opener opens SAS7BDAT files for decoding.
type Opener struct {
	logger   log.Logger
	encoding string
}

// Option configures an Opener.
type Option func(*Opener)

// WithLogger sets the logger used by handles.
func WithLogger(l log.Logger) Option {
	return func(o *Opener) { o.logger = l }
}

// WithEncoding overrides the text encoding declared in the file header.
func WithEncoding(name string) Option {
	return func(o *Opener) { o.encoding = name }
}

// NewOpener returns an Opener.
func NewOpener(opts ...Option) *Opener {
	o := &Opener{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open opens the file at path.  The file is not read until Run.
func (o *Opener) Open(path string) (decode.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, decode.Wrap(decode.StatusOpen, err)
	}
	return &handle{
		f:        f,
		logger:   log.With(o.logger, "file", path),
		encoding: o.encoding,
		limit:    -1,
	}, nil
}

type handle struct {
	f        *os.File
	logger   log.Logger
	encoding string
	offset   int
	limit    int
	handlers decode.Handlers
	closed   bool
}

func (h *handle) Configure(offset, limit int) {
	h.offset, h.limit = offset, limit
}

func (h *handle) Register(hs decode.Handlers) {
	h.handlers = hs
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.f.Close()
}

func (h *handle) Run() error {
	if h.closed {
		return decode.Errorf(decode.StatusRead, "handle is closed")
	}
	p := &pass{handle: h}
	return p.run()
}

// pass is the state of one Run.
type pass struct {
	*handle
	hdr     *Header
	lay     *layout
	dec     decoder
	cols    []column
	vars    []decode.Variable
	scratch [8]byte

	announced bool
	row       int // rows read from the file, including skipped ones
	emitted   int
	stop      bool
}

func (p *pass) run() error {
	hdr, err := ReadHeader(p.f)
	if err != nil {
		return err
	}
	p.hdr = hdr
	p.lay = newLayout(hdr, p.logger)

	if hdr.U64 && hdr.HeaderLength != expectedHeaderLength64 {
		level.Warn(p.logger).Log("msg", "unexpected header length", "length", hdr.HeaderLength, "want", expectedHeaderLength64)
	}
	level.Debug(p.logger).Log("msg", "decoding", "pages", hdr.PageCount, "page_length", hdr.PageLength,
		"u64", hdr.U64, "release", hdr.Release, "platform", hdr.Platform)

	buf := make([]byte, hdr.PageLength)
	for i := 0; i < hdr.PageCount && !p.stop; i++ {
		at := int64(hdr.HeaderLength) + int64(i)*int64(hdr.PageLength)
		if n, err := p.f.ReadAt(buf, at); n < len(buf) {
			if err != nil && err != io.EOF {
				return decode.Wrap(decode.StatusRead, err)
			}
			return decode.Errorf(decode.StatusRead, "page %d is truncated (%d of %d bytes)", i, n, len(buf))
		}
		if err := p.page(page{b: buf, order: hdr.ByteOrder}); err != nil {
			return err
		}
	}

	if !p.announced {
		if err := p.announce(); err != nil {
			return err
		}
	}
	if p.handlers.Value == nil || p.stop {
		return nil
	}
	if p.row < p.lay.rowCount {
		return decode.Errorf(decode.StatusRowCountMismatch, "found %d of %d rows", p.row, p.lay.rowCount)
	}
	return nil
}

func (p *pass) page(pg page) error {
	bo := p.hdr.pageBitOffset
	ptype, err := pg.uint(bo+pageTypeOffset, 2)
	if err != nil {
		return err
	}
	blocks, err := pg.uint(bo+blockCountOffset, 2)
	if err != nil {
		return err
	}
	subheaders, err := pg.uint(bo+subheaderCountOffset, 2)
	if err != nil {
		return err
	}

	var rows []pointer
	switch ptype {
	case pageMeta, pageAmd, pageMix1, pageMix2:
		if rows, err = p.lay.readMetaPage(pg, subheaders); err != nil {
			return err
		}
	case pageData:
	default:
		level.Debug(p.logger).Log("msg", "skipping page", "type", ptype)
		return nil
	}

	hasRows := ptype == pageData || ptype == pageMix1 || ptype == pageMix2 || len(rows) > 0
	if !hasRows {
		return nil
	}
	if !p.announced {
		if err := p.announce(); err != nil {
			return err
		}
	}
	if p.stop {
		return nil
	}

	rl := p.lay.rowLength
	switch ptype {
	case pageData:
		return p.rowsAt(pg, bo+pointersOffset, min(blocks, p.remaining()))
	case pageMix1, pageMix2:
		start := bo + pointersOffset + subheaders*p.hdr.pointerLength
		start += start % 8
		fit := (len(pg.b) - start) / max(rl, 1)
		return p.rowsAt(pg, start, min(p.lay.mixRowCount, p.remaining(), fit))
	}

	for _, ptr := range rows {
		if p.stop || p.remaining() == 0 {
			return nil
		}
		b, err := pg.bytes(ptr.offset, ptr.length)
		if err != nil {
			return err
		}
		if p.lay.compression != decode.CompressNone && ptr.length < rl {
			if b, err = p.decompressor()(rl, b); err != nil {
				return err
			}
		}
		if err := p.emit(b); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) rowsAt(pg page, start, n int) error {
	rl := p.lay.rowLength
	for i := 0; i < n && !p.stop; i++ {
		b, err := pg.bytes(start+i*rl, rl)
		if err != nil {
			return err
		}
		if err := p.emit(b); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) remaining() int {
	return p.lay.rowCount - p.row
}

func (p *pass) decompressor() decompressor {
	if p.lay.compression == decode.CompressBinary {
		return decompressRDC
	}
	return decompressRLE
}

// announce resolves the layout and reports the metadata and variables.
func (p *pass) announce() error {
	p.announced = true

	cs, err := p.charset()
	if err != nil {
		return err
	}
	p.dec = cs.decoder()

	if p.cols, err = p.lay.columns(p.dec); err != nil {
		return err
	}
	table, err := p.dec.text([]byte(p.hdr.Name))
	if err != nil {
		return err
	}
	label, err := p.lay.label(p.dec)
	if err != nil {
		level.Warn(p.logger).Log("msg", "ignoring unreadable file label", "err", err)
		label = ""
	}

	md := &decode.Metadata{
		RowCount:      p.lay.rowCount,
		VarCount:      len(p.cols),
		FileLabel:     label,
		TableName:     table,
		CreationTime:  p.hdr.CreatedUnix(),
		ModifiedTime:  p.hdr.ModifiedUnix(),
		FormatVersion: p.hdr.FormatVersion(),
		Compression:   p.lay.compression,
		Encoding:      cs.name,
		Is64Bit:       p.hdr.U64,
	}
	if p.handlers.Metadata != nil {
		if err := p.handlers.Metadata(md); err != nil {
			return abort(err)
		}
	}

	p.vars = make([]decode.Variable, len(p.cols))
	for i, c := range p.cols {
		v := decode.Variable{
			Index:        i,
			Name:         c.name,
			Label:        c.label,
			Format:       c.format,
			Type:         decode.TypeString,
			StorageWidth: c.width,
		}
		if c.numeric {
			v.Type = decode.TypeDouble
		}
		p.vars[i] = v
		if p.handlers.Variable != nil {
			vc := v
			if err := p.handlers.Variable(i, &vc); err != nil {
				return abort(err)
			}
		}
	}

	if p.handlers.Value == nil || p.limit == 0 || p.remaining() == 0 {
		p.stop = true
	}
	return nil
}

func (p *pass) charset() (charset, error) {
	if p.encoding != "" {
		return charsetForName(p.encoding)
	}
	cs, err := charsetForCode(p.hdr.EncodingCode)
	if err != nil {
		level.Warn(p.logger).Log("msg", "unknown encoding, reading text as UTF-8", "code", p.hdr.EncodingCode)
		return charset{}, nil
	}
	return cs, nil
}

// emit reports one row read from the file, unless it falls before the
// window.
func (p *pass) emit(b []byte) error {
	p.row++
	if p.row <= p.offset {
		p.stop = p.remaining() == 0
		return nil
	}
	if len(b) < p.lay.rowLength {
		return decode.Errorf(decode.StatusRowWidthMismatch, "row %d has %d bytes, want %d", p.row-1, len(b), p.lay.rowLength)
	}

	for j, c := range p.cols {
		raw := b[c.offset : c.offset+c.width]
		var val decode.Value
		if c.numeric {
			val = p.number(raw)
		} else {
			s, err := p.dec.text(bytes.TrimRight(raw, " \x00"))
			if err != nil {
				return err
			}
			val = decode.StringValue(s)
		}
		if err := p.handlers.Value(p.emitted, &p.vars[j], val); err != nil {
			return abort(err)
		}
	}

	p.emitted++
	if (p.limit >= 0 && p.emitted >= p.limit) || p.remaining() == 0 {
		p.stop = true
	}
	return nil
}

// number decodes a possibly truncated double.  Truncation drops the low
// order bytes.
func (p *pass) number(raw []byte) decode.Value {
	clear(p.scratch[:])
	if p.hdr.ByteOrder == binary.LittleEndian {
		copy(p.scratch[8-len(raw):], raw)
	} else {
		copy(p.scratch[:], raw)
	}
	f := math.Float64frombits(p.hdr.ByteOrder.Uint64(p.scratch[:]))
	if math.IsNaN(f) {
		return decode.MissingValue(decode.TypeDouble)
	}
	return decode.DoubleValue(f)
}

func abort(err error) error {
	return &decode.Error{Status: decode.StatusUserAbort, Message: decode.StatusUserAbort.String(), Err: err}
}
