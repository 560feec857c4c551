package sas7bdat

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ExprFilter selects rows with a CEL expression.  Every column is a
// variable named after it; text cells are strings, numeric cells are
// doubles and nulls are null.
//
//	AGE > 13 && SEX == "M"
type ExprFilter struct {
	expr    string
	names   []string
	program cel.Program
}

// NewExprFilter compiles expr against columns.  The expression must
// evaluate to a bool.
func NewExprFilter(columns []ColumnDescriptor, expr string) (*ExprFilter, error) {
	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
		opts = append(opts, cel.Variable(c.Name, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &ValidationError{Param: "filter expression", Value: expr, Reason: issues.Err().Error()}
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, &ValidationError{Param: "filter expression", Value: expr, Reason: "must evaluate to bool, not " + t.String()}
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return &ExprFilter{expr: expr, names: names, program: program}, nil
}

// Match implements Filter.  Evaluation errors, such as comparing a null
// with a number, are returned rather than treated as a non-match.
func (f *ExprFilter) Match(r Row) (bool, error) {
	vars := make(map[string]any, len(f.names))
	for i, name := range f.names {
		if i < len(r) {
			vars[name] = celValue(r[i])
		} else {
			vars[name] = types.NullValue
		}
	}

	out, _, err := f.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", f.expr, err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("evaluating %q: got %s, want bool", f.expr, out.Type().TypeName())
	}
	return bool(b), nil
}

func celValue(c Cell) ref.Val {
	if s, ok := c.Text(); ok {
		return types.String(s)
	}
	if n, ok := c.Number(); ok {
		return types.Double(n)
	}
	return types.NullValue
}
