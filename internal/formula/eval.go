package formula

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrDivideByZero is returned when evaluation divides by zero.
var ErrDivideByZero = eris.New("formula: division by zero")

// ErrNotFinite is returned when evaluation produces NaN or an infinity,
// for example through float64 overflow.
var ErrNotFinite = eris.New("formula: result is not finite")

// Lookup resolves a field name to its current value. The boolean reports
// whether the field has a value at all.
type Lookup func(name string) (float64, bool)

// Eval reduces the formula's expression bottom-up against the given lookup.
// Unknown fields, division by zero, and non-finite results return errors;
// evaluation never panics and never mutates anything behind the lookup.
func (f *Formula) Eval(lookup Lookup) (float64, error) {
	return evalExpr(f.Expr, lookup)
}

func evalExpr(e Expr, lookup Lookup) (float64, error) {
	switch n := e.(type) {
	case *NumberLit:
		return n.Value, nil
	case *FieldRef:
		v, ok := lookup(n.Name)
		if !ok {
			return 0, eris.Errorf("formula: field %q has no value", n.Name)
		}
		return v, nil
	case *BinaryExpr:
		left, err := evalExpr(n.Left, lookup)
		if err != nil {
			return 0, err
		}
		right, err := evalExpr(n.Right, lookup)
		if err != nil {
			return 0, err
		}
		var v float64
		switch n.Op {
		case OpAdd:
			v = left + right
		case OpSub:
			v = left - right
		case OpMul:
			v = left * right
		case OpDiv:
			if right == 0 {
				return 0, ErrDivideByZero
			}
			v = left / right
		default:
			return 0, eris.Errorf("formula: unknown operator %q", n.Op)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrNotFinite
		}
		return v, nil
	default:
		return 0, eris.Errorf("formula: unknown expression node %T", e)
	}
}
