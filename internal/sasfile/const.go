package sasfile

const magic = "\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\xc2\xea\x81\x60" +
	"\xb3\x14\x11\xcf\xbd\x92\x08\x00\x09\xc7\x31\x8c\x18\x1f\x10\x11"

// Header layout.  Offsets marked with align are shifted by 4 when the
// byte at alignOffset is alignChecker; those after the dates are also
// shifted by 4 in 64-bit files.
const (
	headerPrefixLength = 288

	u64Offset          = 32
	alignOffset        = 35
	alignChecker       = '3'
	alignPadding       = 4
	endiannessOffset   = 37
	platformOffset     = 39
	encodingOffset     = 70
	datasetNameOffset  = 92
	datasetNameLength  = 64
	fileTypeOffset     = 156
	fileTypeLength     = 8
	createdOffset      = 164 // align
	modifiedOffset     = 172 // align
	headerLengthOffset = 196 // align
	pageLengthOffset   = 200 // align
	pageCountOffset    = 204 // align
	releaseOffset      = 216 // total align
	releaseLength      = 8
	serverTypeOffset   = 224 // total align
	serverTypeLength   = 16
	osVersionOffset    = 240 // total align
	osMakerOffset      = 256 // total align
	osNameOffset       = 272 // total align
	osFieldLength      = 16

	// Seconds from the SAS epoch (1960-01-01) to the Unix epoch.
	sasEpochOffset = 315619200
)

// Page layout.
const (
	pageBitOffset32 = 16
	pageBitOffset64 = 32
	pointerLength32 = 12
	pointerLength64 = 24

	pageTypeOffset       = 0
	blockCountOffset     = 2
	subheaderCountOffset = 4
	pointersOffset       = 8

	pageMeta = 0
	pageData = 256
	pageMix1 = 512
	pageMix2 = 640
	pageAmd  = 1024

	truncatedSubheader  = 1
	compressedSubheader = 4
	compressedDataType  = 1
)

// Subheader field offsets, as multiples of the integer width or relative
// to the start of a repeated entry.
const (
	rowLengthMultiplier    = 5
	rowCountMultiplier     = 6
	colCountP1Multiplier   = 9
	colCountP2Multiplier   = 10
	mixRowCountMultiplier  = 15
	fileLabelFromEnd       = 130
	columnNamePointerWidth = 8
	columnTypeOffset       = 14
	formatIndexOffset      = 22
	formatOffsetOffset     = 24
	formatLengthOffset     = 26
	labelIndexOffset       = 28
	labelOffsetOffset      = 30
	labelLengthOffset      = 32

	rleSignature = "SASYZCRL"
	rdcSignature = "SASYZCR2"
)

type subheaderKind int

const (
	kindUnknown subheaderKind = iota
	kindRowSize
	kindColumnSize
	kindCounts
	kindColumnText
	kindColumnName
	kindColumnAttributes
	kindFormatAndLabel
	kindColumnList
	kindData
)

// Subheader signatures, 32 and 64 bit, little and big endian.
var signatures = map[string]subheaderKind{
	"\xF7\xF7\xF7\xF7":                 kindRowSize,
	"\x00\x00\x00\x00\xF7\xF7\xF7\xF7": kindRowSize,
	"\xF7\xF7\xF7\xF7\x00\x00\x00\x00": kindRowSize,
	"\xF7\xF7\xF7\xF7\xFF\xFF\xFB\xFE": kindRowSize,
	"\xF6\xF6\xF6\xF6":                 kindColumnSize,
	"\x00\x00\x00\x00\xF6\xF6\xF6\xF6": kindColumnSize,
	"\xF6\xF6\xF6\xF6\x00\x00\x00\x00": kindColumnSize,
	"\xF6\xF6\xF6\xF6\xFF\xFF\xFB\xFE": kindColumnSize,
	"\x00\xFC\xFF\xFF":                 kindCounts,
	"\xFF\xFF\xFC\x00":                 kindCounts,
	"\x00\xFC\xFF\xFF\xFF\xFF\xFF\xFF": kindCounts,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFC\x00": kindCounts,
	"\xFD\xFF\xFF\xFF":                 kindColumnText,
	"\xFF\xFF\xFF\xFD":                 kindColumnText,
	"\xFD\xFF\xFF\xFF\xFF\xFF\xFF\xFF": kindColumnText,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFD": kindColumnText,
	"\xFF\xFF\xFF\xFF":                 kindColumnName,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF": kindColumnName,
	"\xFC\xFF\xFF\xFF":                 kindColumnAttributes,
	"\xFF\xFF\xFF\xFC":                 kindColumnAttributes,
	"\xFC\xFF\xFF\xFF\xFF\xFF\xFF\xFF": kindColumnAttributes,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFC": kindColumnAttributes,
	"\xFE\xFB\xFF\xFF":                 kindFormatAndLabel,
	"\xFF\xFF\xFB\xFE":                 kindFormatAndLabel,
	"\xFE\xFB\xFF\xFF\xFF\xFF\xFF\xFF": kindFormatAndLabel,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFB\xFE": kindFormatAndLabel,
	"\xFE\xFF\xFF\xFF":                 kindColumnList,
	"\xFF\xFF\xFF\xFE":                 kindColumnList,
	"\xFE\xFF\xFF\xFF\xFF\xFF\xFF\xFF": kindColumnList,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFE": kindColumnList,
}
