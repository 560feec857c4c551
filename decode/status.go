package decode

import (
	"errors"
	"fmt"
)

// Status is a decoder status code.  StatusOK is never carried by an Error.
type Status int

const (
	StatusOK Status = iota
	StatusOpen
	StatusRead
	StatusSeek
	StatusParse
	StatusUnsupportedCompression
	StatusUnsupportedCharset
	StatusRowCountMismatch
	StatusRowWidthMismatch
	StatusUserAbort
)

var statusMessages = map[Status]string{
	StatusOK:                     "no error",
	StatusOpen:                   "unable to open file",
	StatusRead:                   "unable to read from file",
	StatusSeek:                   "unable to seek within file",
	StatusParse:                  "invalid file, or file has unsupported features",
	StatusUnsupportedCompression: "file has an unsupported compression scheme",
	StatusUnsupportedCharset:     "file has an unsupported character set",
	StatusRowCountMismatch:       "file did not contain the expected number of rows",
	StatusRowWidthMismatch:       "a row in the file was not the expected length",
	StatusUserAbort:              "the parsing was aborted by a callback",
}

func (s Status) String() string {
	if m, ok := statusMessages[s]; ok {
		return m
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// Error is a failed decode.  Message is the decoder's own description and
// Err, when set, the underlying cause (an I/O error or the error returned
// by a callback).
type Error struct {
	Status  Status
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Status.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns an *Error with a formatted message.
func Errorf(status Status, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error for status that wraps err.  An err that already
// is an *Error is returned unchanged.
func Wrap(status Status, err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Status: status, Message: status.String(), Err: err}
}

// StatusOf reports the status carried by err, StatusOK for nil and
// StatusParse for errors that are not an *Error.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	return StatusParse
}
