package sasfile

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/defineEditor/sas7bdat/decode"
)

type charset struct {
	name string
	enc  encoding.Encoding // nil for UTF-8 and ASCII
}

// Encoding codes found at offset 70 of the header.  Code 0 means the
// session default, which we take to be Windows Latin 1.
var charsets = map[byte]charset{
	0:  {"WINDOWS-1252", charmap.Windows1252},
	20: {"UTF-8", nil},
	28: {"US-ASCII", nil},
	29: {"ISO-8859-1", charmap.ISO8859_1},
	30: {"ISO-8859-2", charmap.ISO8859_2},
	31: {"ISO-8859-3", charmap.ISO8859_3},
	32: {"ISO-8859-4", charmap.ISO8859_4},
	33: {"ISO-8859-5", charmap.ISO8859_5},
	34: {"ISO-8859-6", charmap.ISO8859_6},
	35: {"ISO-8859-7", charmap.ISO8859_7},
	36: {"ISO-8859-8", charmap.ISO8859_8},
	37: {"ISO-8859-9", charmap.ISO8859_9},
	40: {"ISO-8859-15", charmap.ISO8859_15},
	41: {"CP437", charmap.CodePage437},
	42: {"CP850", charmap.CodePage850},
	43: {"CP852", charmap.CodePage852},
	45: {"CP858", charmap.CodePage858},
	46: {"CP862", charmap.CodePage862},
	48: {"CP865", charmap.CodePage865},
	49: {"CP866", charmap.CodePage866},
	60: {"WINDOWS-1250", charmap.Windows1250},
	61: {"WINDOWS-1251", charmap.Windows1251},
	62: {"WINDOWS-1252", charmap.Windows1252},
	63: {"WINDOWS-1253", charmap.Windows1253},
	64: {"WINDOWS-1254", charmap.Windows1254},
	65: {"WINDOWS-1255", charmap.Windows1255},
	66: {"WINDOWS-1256", charmap.Windows1256},
	67: {"WINDOWS-1257", charmap.Windows1257},
	68: {"WINDOWS-1258", charmap.Windows1258},
}

// charsetForCode resolves a header encoding code.  Unknown codes fail with
// StatusUnsupportedCharset.
func charsetForCode(code byte) (charset, error) {
	cs, ok := charsets[code]
	if !ok {
		return charset{}, decode.Errorf(decode.StatusUnsupportedCharset, "unknown encoding code %d", code)
	}
	return cs, nil
}

// charsetForName resolves an encoding name such as "latin1" or
// "windows-1252".
func charsetForName(name string) (charset, error) {
	switch strings.ToUpper(name) {
	case "UTF-8", "UTF8":
		return charset{name: "UTF-8"}, nil
	case "US-ASCII", "ASCII":
		return charset{name: "US-ASCII"}, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return charset{}, decode.Errorf(decode.StatusUnsupportedCharset, "encoding %q is not supported", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = strings.ToUpper(name)
	}
	return charset{name: strings.ToUpper(canonical), enc: enc}, nil
}

// decoder converts file text to UTF-8.
type decoder struct {
	dec *encoding.Decoder
}

func (cs charset) decoder() decoder {
	if cs.enc == nil {
		return decoder{}
	}
	return decoder{dec: cs.enc.NewDecoder()}
}

func (d decoder) text(b []byte) (string, error) {
	if d.dec == nil {
		if utf8.Valid(b) {
			return string(b), nil
		}
		return strings.ToValidUTF8(string(b), "�"), nil
	}
	out, err := d.dec.Bytes(b)
	if err != nil {
		return "", decode.Errorf(decode.StatusUnsupportedCharset, "transcoding text: %v", err)
	}
	return string(out), nil
}
