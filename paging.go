package sas7bdat

import "github.com/defineEditor/sas7bdat/decode"

// NoLimit is the row limit meaning "to the end of the file".
const NoLimit = -1

// Paging is a validated row window.
type Paging struct {
	Offset int
	Limit  int
}

// Unpaged is the window covering the whole file.
var Unpaged = Paging{Offset: 0, Limit: NoLimit}

// NewPaging validates offset and limit.  Offset must be non-negative and
// limit at least -1.
func NewPaging(offset, limit int) (Paging, error) {
	if offset < 0 {
		return Paging{}, &ValidationError{Param: "row offset", Value: offset, Reason: "must be non-negative"}
	}
	if limit < NoLimit {
		return Paging{}, &ValidationError{Param: "row limit", Value: limit, Reason: "must be positive or -1 (for all records)"}
	}
	return Paging{Offset: offset, Limit: limit}, nil
}

// Apply configures a handle before its pass starts.
func (p Paging) Apply(h decode.Handle) {
	h.Configure(p.Offset, p.Limit)
}

// Bounded reports whether the window stops before the end of the file.
func (p Paging) Bounded() bool {
	return p.Limit != NoLimit
}
