package sasfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/defineEditor/sas7bdat/decode"
)

// Header is the fixed-layout file header.
type Header struct {
	U64          bool
	ByteOrder    binary.ByteOrder
	Platform     string
	EncodingCode byte
	Name         string
	FileType     string
	Created      float64 // seconds since 1960-01-01
	Modified     float64
	HeaderLength int
	PageLength   int
	PageCount    int
	Release      string
	ServerType   string
	OSType       string
	OSName       string

	intLength     int
	pageBitOffset int
	pointerLength int
}

// CreatedUnix returns the creation time in Unix seconds.
func (h *Header) CreatedUnix() int64 { return sasToUnix(h.Created) }

// ModifiedUnix returns the modification time in Unix seconds.
func (h *Header) ModifiedUnix() int64 { return sasToUnix(h.Modified) }

func sasToUnix(t float64) int64 {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}
	return int64(t) - sasEpochOffset
}

// FormatVersion returns the major number of the SAS release, or 0 when
// the release string does not start with one.
func (h *Header) FormatVersion() int {
	major, _, _ := strings.Cut(h.Release, ".")
	v, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return v
}

// page is a byte slice read with the file's byte order.
type page struct {
	b     []byte
	order binary.ByteOrder
}

func (p page) bytes(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(p.b) {
		return nil, decode.Errorf(decode.StatusParse, "read of %d bytes at offset %d outside %d byte block", n, off, len(p.b))
	}
	return p.b[off : off+n], nil
}

// int reads a signed integer of width 1, 2, 4 or 8.
func (p page) int(off, width int) (int, error) {
	b, err := p.bytes(off, width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return int(int8(b[0])), nil
	case 2:
		return int(int16(p.order.Uint16(b))), nil
	case 4:
		return int(int32(p.order.Uint32(b))), nil
	case 8:
		return int(int64(p.order.Uint64(b))), nil
	}
	return 0, decode.Errorf(decode.StatusParse, "invalid integer width %d", width)
}

// uint reads an unsigned integer of width 1, 2, 4 or 8.
func (p page) uint(off, width int) (int, error) {
	b, err := p.bytes(off, width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return int(b[0]), nil
	case 2:
		return int(p.order.Uint16(b)), nil
	case 4:
		return int(p.order.Uint32(b)), nil
	case 8:
		return int(p.order.Uint64(b)), nil
	}
	return 0, decode.Errorf(decode.StatusParse, "invalid integer width %d", width)
}

func (p page) float(off int) (float64, error) {
	b, err := p.bytes(off, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(p.order.Uint64(b)), nil
}

func trimText(b []byte) string {
	return string(bytes.TrimRight(b, " \x00"))
}

// ReadHeader reads the file header from r.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	prefix := make([]byte, headerPrefixLength)
	if n, err := r.ReadAt(prefix, 0); n < len(prefix) {
		if err == nil || err == io.EOF {
			return nil, decode.Errorf(decode.StatusParse, "file too short for a SAS7BDAT header (%d bytes)", n)
		}
		return nil, decode.Wrap(decode.StatusRead, err)
	}
	if !bytes.Equal(prefix[:len(magic)], []byte(magic)) {
		return nil, decode.Errorf(decode.StatusParse, "magic number mismatch (not a SAS file?)")
	}

	h := &Header{
		intLength:     4,
		pageBitOffset: pageBitOffset32,
		pointerLength: pointerLength32,
	}
	var align1, align2 int
	if prefix[u64Offset] == alignChecker {
		h.U64 = true
		h.intLength = 8
		h.pageBitOffset = pageBitOffset64
		h.pointerLength = pointerLength64
		align2 = alignPadding
	}
	if prefix[alignOffset] == alignChecker {
		align1 = alignPadding
	}
	total := align1 + align2

	h.ByteOrder = binary.BigEndian
	if prefix[endiannessOffset] == 0x01 {
		h.ByteOrder = binary.LittleEndian
	}
	switch prefix[platformOffset] {
	case '1':
		h.Platform = "unix"
	case '2':
		h.Platform = "windows"
	default:
		h.Platform = "unknown"
	}
	h.EncodingCode = prefix[encodingOffset]
	h.Name = trimText(prefix[datasetNameOffset : datasetNameOffset+datasetNameLength])
	h.FileType = trimText(prefix[fileTypeOffset : fileTypeOffset+fileTypeLength])

	p := page{b: prefix, order: h.ByteOrder}
	var err error
	if h.Created, err = p.float(createdOffset + align1); err != nil {
		return nil, err
	}
	if h.Modified, err = p.float(modifiedOffset + align1); err != nil {
		return nil, err
	}
	if h.HeaderLength, err = p.uint(headerLengthOffset+align1, 4); err != nil {
		return nil, err
	}
	if h.HeaderLength < headerPrefixLength {
		return nil, decode.Errorf(decode.StatusParse, "header length %d is too small", h.HeaderLength)
	}

	full := make([]byte, h.HeaderLength)
	if n, err := r.ReadAt(full, 0); n < len(full) {
		if err == nil || err == io.EOF {
			return nil, decode.Errorf(decode.StatusParse, "the SAS7BDAT file appears to be truncated")
		}
		return nil, decode.Wrap(decode.StatusRead, err)
	}
	p = page{b: full, order: h.ByteOrder}

	if h.PageLength, err = p.uint(pageLengthOffset+align1, 4); err != nil {
		return nil, err
	}
	if h.PageLength <= 0 {
		return nil, decode.Errorf(decode.StatusParse, "invalid page length %d", h.PageLength)
	}
	if h.PageCount, err = p.uint(pageCountOffset+align1, 4); err != nil {
		return nil, err
	}

	field := func(off, n int) (string, error) {
		b, err := p.bytes(off+total, n)
		if err != nil {
			return "", err
		}
		return trimText(b), nil
	}
	if h.Release, err = field(releaseOffset, releaseLength); err != nil {
		return nil, err
	}
	if h.ServerType, err = field(serverTypeOffset, serverTypeLength); err != nil {
		return nil, err
	}
	if h.OSType, err = field(osVersionOffset, osFieldLength); err != nil {
		return nil, err
	}
	if h.OSName, err = field(osNameOffset, osFieldLength); err != nil {
		return nil, err
	}
	if h.OSName == "" {
		if h.OSName, err = field(osMakerOffset, osFieldLength); err != nil {
			return nil, err
		}
	}
	return h, nil
}
