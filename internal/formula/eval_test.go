package formula

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(values map[string]float64) Lookup {
	return func(name string) (float64, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestEval(t *testing.T) {
	t.Parallel()

	values := map[string]float64{
		"a": 6, "b": 3, "c": 2, "d": 10,
		"price": 10, "quantity": 5,
	}

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"product", "total = price * quantity", 50},
		{"sum", "x = a + b", 9},
		{"difference", "x = a - b", 3},
		{"quotient", "x = a / b", 2},
		{"precedence", "x = a / b + c * d", 22},
		{"parentheses", "x = (a - b) * c", 6},
		{"left assoc division", "x = a / b / c", 1},
		{"left assoc subtraction", "x = d - a - b", 1},
		{"literal arithmetic", "x = 2 * 3.5 + 1", 8},
		{"nested parens", "x = ((a + b) * (d - c)) / b", 24},
		{"single field", "x = d", 10},
		{"single literal", "x = 42", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := Parse(tt.text)
			require.NoError(t, err)

			got, err := f.Eval(mapLookup(values))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	t.Parallel()

	t.Run("division by zero", func(t *testing.T) {
		t.Parallel()
		f, err := Parse("x = a / b")
		require.NoError(t, err)

		_, err = f.Eval(mapLookup(map[string]float64{"a": 1, "b": 0}))
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrDivideByZero))
	})

	t.Run("division by zero subexpression", func(t *testing.T) {
		t.Parallel()
		f, err := Parse("x = a / (b - b)")
		require.NoError(t, err)

		_, err = f.Eval(mapLookup(map[string]float64{"a": 1, "b": 7}))
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrDivideByZero))
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		f, err := Parse("x = a + missing")
		require.NoError(t, err)

		_, err = f.Eval(mapLookup(map[string]float64{"a": 1}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("overflow is not finite", func(t *testing.T) {
		t.Parallel()
		f, err := Parse("x = a * a")
		require.NoError(t, err)

		_, err = f.Eval(mapLookup(map[string]float64{"a": math.MaxFloat64}))
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrNotFinite))
	})
}

func TestEvalIsPure(t *testing.T) {
	t.Parallel()

	f, err := Parse("x = (a + b) * c")
	require.NoError(t, err)

	lookup := mapLookup(map[string]float64{"a": 1, "b": 2, "c": 3})
	first, err := f.Eval(lookup)
	require.NoError(t, err)
	second, err := f.Eval(lookup)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
