package sasfile

import (
	"bytes"

	"github.com/defineEditor/sas7bdat/decode"
)

// decompressor expands one compressed row to rowLength bytes.
type decompressor func(rowLength int, in []byte) ([]byte, error)

func errTruncated(scheme string) error {
	return decode.Errorf(decode.StatusParse, "%s: compressed row is truncated", scheme)
}

// decompressRLE expands the run length encoding used by SASYZCRL files.
// The control byte's high nibble selects the command and its low nibble
// is part of the count.
func decompressRLE(rowLength int, in []byte) ([]byte, error) {
	out := make([]byte, 0, rowLength)

	copyN := func(n int) error {
		if n > len(in) {
			return errTruncated("RLE")
		}
		out = append(out, in[:n]...)
		in = in[n:]
		return nil
	}
	next := func() (byte, error) {
		if len(in) == 0 {
			return 0, errTruncated("RLE")
		}
		b := in[0]
		in = in[1:]
		return b, nil
	}
	repeat := func(b byte, n int) {
		out = append(out, bytes.Repeat([]byte{b}, n)...)
	}

	for len(in) > 0 {
		ctrl := in[0] & 0xF0
		low := int(in[0] & 0x0F)
		in = in[1:]

		switch ctrl {
		case 0x00:
			b, err := next()
			if err != nil {
				return nil, err
			}
			if err := copyN(int(b) + 64 + low*256); err != nil {
				return nil, err
			}
		case 0x40:
			b, err := next()
			if err != nil {
				return nil, err
			}
			x, err := next()
			if err != nil {
				return nil, err
			}
			repeat(x, low*256+int(b)+18)
		case 0x60:
			b, err := next()
			if err != nil {
				return nil, err
			}
			repeat(' ', low*256+int(b)+17)
		case 0x70:
			b, err := next()
			if err != nil {
				return nil, err
			}
			repeat(0, low*256+int(b)+17)
		case 0x80:
			if err := copyN(low + 1); err != nil {
				return nil, err
			}
		case 0x90:
			if err := copyN(low + 17); err != nil {
				return nil, err
			}
		case 0xA0:
			if err := copyN(low + 33); err != nil {
				return nil, err
			}
		case 0xB0:
			if err := copyN(low + 49); err != nil {
				return nil, err
			}
		case 0xC0:
			x, err := next()
			if err != nil {
				return nil, err
			}
			repeat(x, low+3)
		case 0xD0:
			repeat('@', low+2)
		case 0xE0:
			repeat(' ', low+2)
		case 0xF0:
			repeat(0, low+2)
		default:
			return nil, decode.Errorf(decode.StatusParse, "RLE: unknown control byte %#x", ctrl)
		}
	}

	if len(out) != rowLength {
		return nil, decode.Errorf(decode.StatusRowWidthMismatch, "RLE: row expanded to %d bytes, want %d", len(out), rowLength)
	}
	return out, nil
}

// decompressRDC expands Ross Data Compression, used by SASYZCR2 files.
// Each 16-bit control word flags which of the next 16 items are literal
// bytes and which are commands.
func decompressRDC(rowLength int, in []byte) ([]byte, error) {
	out := make([]byte, 0, rowLength)
	var ctrlBits, ctrlMask uint16
	pos := 0

	need := func(n int) error {
		if pos+n > len(in) {
			return errTruncated("RDC")
		}
		return nil
	}
	back := func(ofs, cnt int) error {
		start := len(out) - ofs
		if start < 0 || start+cnt > len(out) {
			return decode.Errorf(decode.StatusParse, "RDC: back reference %d,%d outside %d bytes", ofs, cnt, len(out))
		}
		out = append(out, out[start:start+cnt]...)
		return nil
	}

	for pos < len(in) {
		ctrlMask >>= 1
		if ctrlMask == 0 {
			if err := need(2); err != nil {
				return nil, err
			}
			ctrlBits = uint16(in[pos])<<8 | uint16(in[pos+1])
			pos += 2
			ctrlMask = 0x8000
			if pos >= len(in) {
				break
			}
		}

		if ctrlBits&ctrlMask == 0 {
			out = append(out, in[pos])
			pos++
			continue
		}

		cmd := int(in[pos]>>4) & 0x0F
		cnt := int(in[pos] & 0x0F)
		pos++

		switch {
		case cmd == 0: // short run
			if err := need(1); err != nil {
				return nil, err
			}
			out = append(out, bytes.Repeat(in[pos:pos+1], cnt+3)...)
			pos++
		case cmd == 1: // long run
			if err := need(2); err != nil {
				return nil, err
			}
			cnt += int(in[pos])<<4 + 19
			out = append(out, bytes.Repeat(in[pos+1:pos+2], cnt)...)
			pos += 2
		case cmd == 2: // long pattern
			if err := need(2); err != nil {
				return nil, err
			}
			ofs := cnt + 3 + int(in[pos])<<4
			n := int(in[pos+1]) + 16
			pos += 2
			if err := back(ofs, n); err != nil {
				return nil, err
			}
		default: // short pattern
			if err := need(1); err != nil {
				return nil, err
			}
			ofs := cnt + 3 + int(in[pos])<<4
			pos++
			if err := back(ofs, cmd); err != nil {
				return nil, err
			}
		}
	}

	if len(out) != rowLength {
		return nil, decode.Errorf(decode.StatusRowWidthMismatch, "RDC: row expanded to %d bytes, want %d", len(out), rowLength)
	}
	return out, nil
}
