package sas7bdat

import (
	"fmt"
	"strings"
)

// Filter selects rows.  Rows passed to Match hold every column of the
// file, in file order.
type Filter interface {
	Match(Row) (bool, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(Row) (bool, error)

func (f FilterFunc) Match(r Row) (bool, error) { return f(r) }

// Operator is a comparison used by a Condition.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpGt         Operator = "gt"
	OpGe         Operator = "ge"
	OpLt         Operator = "lt"
	OpLe         Operator = "le"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notin"
	OpContains   Operator = "contains"
	OpStarts     Operator = "starts"
	OpEnds       Operator = "ends"
	OpMissing    Operator = "missing"
	OpNotMissing Operator = "notmissing"
)

// Connector joins two conditions.
type Connector string

const (
	And Connector = "and"
	Or  Connector = "or"
)

// Condition compares one column with a value.  Value is a string or a
// number; for OpIn and OpNotIn it is a slice of them.  OpMissing and
// OpNotMissing ignore it.
type Condition struct {
	Variable string
	Operator Operator
	Value    any
}

type condition struct {
	col    int
	op     Operator
	values []Cell
}

// ConditionFilter applies a list of conditions joined by connectors.
// Connectors are evaluated left to right without precedence.
type ConditionFilter struct {
	conds      []condition
	connectors []Connector
}

// NewConditionFilter resolves the conditions against columns.  There must
// be exactly one connector between each pair of conditions.
func NewConditionFilter(columns []ColumnDescriptor, conds []Condition, connectors []Connector) (*ConditionFilter, error) {
	if len(conds) == 0 {
		return nil, &ValidationError{Param: "filter", Value: conds, Reason: "needs at least one condition"}
	}
	if len(connectors) != len(conds)-1 {
		return nil, &ValidationError{Param: "filter connectors", Value: connectors,
			Reason: fmt.Sprintf("expected %d for %d conditions", len(conds)-1, len(conds))}
	}
	for _, c := range connectors {
		if c != And && c != Or {
			return nil, &ValidationError{Param: "filter connector", Value: c, Reason: `must be "and" or "or"`}
		}
	}

	desc := &DatasetDescriptor{Columns: columns}
	f := &ConditionFilter{connectors: connectors}
	for _, c := range conds {
		col := desc.ColumnIndex(c.Variable)
		if col < 0 {
			return nil, &ValidationError{Param: "filter variable", Value: c.Variable, Reason: "not found"}
		}
		cc := condition{col: col, op: c.Operator}
		switch c.Operator {
		case OpMissing, OpNotMissing:
		case OpIn, OpNotIn:
			list, ok := c.Value.([]any)
			if !ok {
				return nil, &ValidationError{Param: "filter value", Value: c.Value, Reason: fmt.Sprintf("%s needs a list", c.Operator)}
			}
			for _, v := range list {
				cell, err := conditionCell(v)
				if err != nil {
					return nil, err
				}
				cc.values = append(cc.values, cell)
			}
		case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe, OpContains, OpStarts, OpEnds:
			cell, err := conditionCell(c.Value)
			if err != nil {
				return nil, err
			}
			cc.values = []Cell{cell}
		default:
			return nil, &ValidationError{Param: "filter operator", Value: c.Operator, Reason: "unknown"}
		}
		f.conds = append(f.conds, cc)
	}
	return f, nil
}

func conditionCell(v any) (Cell, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	}
	return Cell{}, &ValidationError{Param: "filter value", Value: v, Reason: "must be a string or a number"}
}

// Match implements Filter.
func (f *ConditionFilter) Match(r Row) (bool, error) {
	result := f.conds[0].match(r)
	for i, conn := range f.connectors {
		next := f.conds[i+1].match(r)
		if conn == And {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result, nil
}

func (c condition) match(r Row) bool {
	if c.col >= len(r) {
		return false
	}
	cell := r[c.col]
	switch c.op {
	case OpMissing:
		return isMissing(cell)
	case OpNotMissing:
		return !isMissing(cell)
	case OpIn:
		return containsCell(c.values, cell)
	case OpNotIn:
		return !containsCell(c.values, cell)
	case OpNe:
		return !cellsEqual(cell, c.values[0])
	case OpEq:
		return cellsEqual(cell, c.values[0])
	}

	want := c.values[0]
	if cell.IsNull() || want.IsNull() {
		return false
	}
	switch c.op {
	case OpContains:
		return strings.Contains(cell.String(), want.String())
	case OpStarts:
		return strings.HasPrefix(cell.String(), want.String())
	case OpEnds:
		return strings.HasSuffix(cell.String(), want.String())
	}

	cmp, ok := compareCells(cell, want)
	if !ok {
		return false
	}
	switch c.op {
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

// isMissing treats blank text as missing, since SAS stores missing
// character values as blanks.
func isMissing(c Cell) bool {
	if s, ok := c.Text(); ok {
		return s == ""
	}
	return c.IsNull()
}

func cellsEqual(a, b Cell) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	return a.Equal(b)
}

func containsCell(list []Cell, c Cell) bool {
	for _, v := range list {
		if cellsEqual(c, v) {
			return true
		}
	}
	return false
}

// compareCells orders two non-null cells of the same kind.
func compareCells(a, b Cell) (int, bool) {
	if x, ok := a.Number(); ok {
		y, ok := b.Number()
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	x, _ := a.Text()
	y, ok := b.Text()
	if !ok {
		return 0, false
	}
	return strings.Compare(x, y), true
}
