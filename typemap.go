package sas7bdat

import (
	"strconv"
	"unicode/utf8"

	"github.com/defineEditor/sas7bdat/decode"
)

// MapType returns the logical type for a decoder storage type.  Integer
// widths map to integer, float widths to double and strings to text.  Any
// other ASCII code maps to the one-character string of that byte; codes
// of 128 and above map to their decimal form, so the type stays valid
// UTF-8.
func MapType(t decode.StorageType) LogicalType {
	switch t {
	case decode.TypeString:
		return TypeText
	case decode.TypeInt8, decode.TypeInt16, decode.TypeInt32:
		return TypeInteger
	case decode.TypeFloat, decode.TypeDouble:
		return TypeDouble
	}
	if t < utf8.RuneSelf {
		return LogicalType(string(rune(t)))
	}
	return LogicalType(strconv.Itoa(int(t)))
}

// toCell converts a decoded value.  Missing values are null whatever
// their type.
func toCell(val decode.Value) Cell {
	if val.Missing {
		return Null()
	}
	switch MapType(val.Type) {
	case TypeText:
		return Text(val.Str)
	case TypeInteger:
		return Number(float64(val.Int))
	case TypeDouble:
		return Number(val.Float)
	}
	return Null()
}
