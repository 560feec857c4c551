// Package decode defines the contract between the extraction pipeline and
// a SAS7BDAT decoder.
//
// A decoder parses the on-disk layout and reports what it finds through
// three callbacks: one metadata event for the file, one variable event per
// column in index order, and one value event per cell in row-major order.
// A pass is driven synchronously by Handle.Run.
package decode

// StorageType is the storage type a decoder reports for a variable or a
// value.  The numeric codes are stable and may surface in output when a
// type is not otherwise recognised.
type StorageType uint8

const (
	TypeString StorageType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeFloat
	TypeDouble
	TypeStringRef
)

func (t StorageType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeStringRef:
		return "string_ref"
	}
	return "unknown"
}

// Compression is the row compression scheme of a file.
type Compression int

const (
	CompressNone Compression = iota
	CompressRows
	CompressBinary
)

// Metadata is the file-wide event.  Times are Unix epoch seconds.
type Metadata struct {
	RowCount      int
	VarCount      int
	FileLabel     string
	TableName     string
	CreationTime  int64
	ModifiedTime  int64
	FormatVersion int
	Compression   Compression
	Encoding      string
	Is64Bit       bool
}

// Variable describes one column.  Index is 0-based and fixed.
type Variable struct {
	Index        int
	Name         string
	Label        string
	Format       string
	Type         StorageType
	StorageWidth int
}

// Value is a single cell as decoded.  Only the payload field matching Type
// is meaningful, and none of them when Missing is set.
type Value struct {
	Type    StorageType
	Missing bool
	Str     string
	Int     int32
	Float   float64
}

// StringValue returns a non-missing string value.
func StringValue(s string) Value {
	return Value{Type: TypeString, Str: s}
}

// DoubleValue returns a non-missing double value.
func DoubleValue(f float64) Value {
	return Value{Type: TypeDouble, Float: f}
}

// Int32Value returns a non-missing int32 value.
func Int32Value(i int32) Value {
	return Value{Type: TypeInt32, Int: i}
}

// MissingValue returns a missing value of the given type.
func MissingValue(t StorageType) Value {
	return Value{Type: t, Missing: true}
}

// Callbacks.  Returning a non-nil error aborts the pass; Run then returns
// an *Error with StatusUserAbort wrapping it.
type (
	MetadataHandler func(md *Metadata) error
	VariableHandler func(index int, v *Variable) error
	ValueHandler    func(obsIndex int, v *Variable, val Value) error
)

// Handlers is the set of callbacks registered on a handle.  A nil handler
// means the event is not wanted; a decoder may skip work it would only
// do to produce that event.
type Handlers struct {
	Metadata MetadataHandler
	Variable VariableHandler
	Value    ValueHandler
}

// Opener opens decode handles.
type Opener interface {
	Open(path string) (Handle, error)
}

// Handle is one open file.  Configure and Register must be called before
// Run.  Close must always be called, and is safe after a failed Run.
type Handle interface {
	// Configure skips offset leading records and stops after limit
	// records; a limit of -1 means no limit.
	Configure(offset, limit int)
	Register(h Handlers)
	Run() error
	Close() error
}
