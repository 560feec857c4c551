package sas7bdat

import "github.com/defineEditor/sas7bdat/decode"

// RowAccumulator builds a RowMatrix from value events.  A value for
// column 0 opens a new row; every other value lands in the current row at
// its column index.
type RowAccumulator struct {
	columns int
	rows    RowMatrix
	current Row
	next    int // column index expected next within the current row
}

// NewRowAccumulator returns an accumulator for rows of the given width.
func NewRowAccumulator(columns int) *RowAccumulator {
	return &RowAccumulator{columns: columns}
}

// Reset discards any rows and sets the row width.
func (a *RowAccumulator) Reset(columns int) {
	*a = RowAccumulator{columns: columns}
}

// OnValue handles a value event.
func (a *RowAccumulator) OnValue(obsIndex int, v *decode.Variable, val decode.Value) error {
	col := v.Index
	if col < 0 || col >= a.columns {
		return contractViolation("row %d: column index %d outside %d columns", obsIndex, col, a.columns)
	}

	if col == 0 {
		if a.current != nil && a.next != a.columns {
			return contractViolation("row %d closed after %d of %d columns", len(a.rows)-1, a.next, a.columns)
		}
		a.current = make(Row, a.columns)
		a.rows = append(a.rows, a.current)
		a.next = 0
	} else if a.current == nil || col != a.next {
		return contractViolation("row %d: column index %d, expected %d", obsIndex, col, a.next)
	}

	a.current[col] = toCell(val)
	a.next = col + 1
	return nil
}

// Rows closes the current row and returns the matrix.  An empty pass
// yields an empty, non-nil matrix.
func (a *RowAccumulator) Rows() (RowMatrix, error) {
	if a.current != nil && a.next != a.columns {
		return nil, contractViolation("row %d closed after %d of %d columns", len(a.rows)-1, a.next, a.columns)
	}
	if a.rows == nil {
		return RowMatrix{}, nil
	}
	return a.rows, nil
}
