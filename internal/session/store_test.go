package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docufill/fieldcalc/internal/model"
)

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("absent field has no value", func(t *testing.T) {
		t.Parallel()
		st := NewStore()
		_, ok := st.Value("anything")
		assert.False(t, ok)
		assert.Zero(t, st.Len())
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		t.Parallel()
		st := NewStore()
		st.SetValue("subtotal", 100, model.SourceExtracted)

		v, ok := st.Value("subtotal")
		require.True(t, ok)
		assert.Equal(t, 100.0, v)

		fv, ok := st.Get("subtotal")
		require.True(t, ok)
		assert.Equal(t, model.SourceExtracted, fv.Source)
		assert.Equal(t, model.ConfidenceHigh, fv.Confidence)
		assert.False(t, fv.SetAt.IsZero())
	})

	t.Run("set replaces the previous value", func(t *testing.T) {
		t.Parallel()
		st := NewStore()
		st.SetValue("tax", 5, model.SourceExtracted)
		st.SetValue("tax", 8, model.SourceManual)

		fv, ok := st.Get("tax")
		require.True(t, ok)
		assert.Equal(t, 8.0, fv.Value)
		assert.Equal(t, model.SourceManual, fv.Source)
		assert.Equal(t, 1, st.Len())
	})

	t.Run("delete returns the field to unknown", func(t *testing.T) {
		t.Parallel()
		st := NewStore()
		st.SetValue("tax", 5, model.SourceExtracted)
		st.Delete("tax")

		_, ok := st.Value("tax")
		assert.False(t, ok)
	})

	t.Run("names are sorted", func(t *testing.T) {
		t.Parallel()
		st := NewStore()
		st.SetValue("zeta", 1, model.SourceExtracted)
		st.SetValue("alpha", 2, model.SourceExtracted)
		st.SetValue("mid", 3, model.SourceExtracted)

		assert.Equal(t, []string{"alpha", "mid", "zeta"}, st.Names())
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		t.Parallel()
		st := NewStore()
		st.SetValue("a", 1, model.SourceExtracted)

		snap := st.Snapshot()
		st.SetValue("a", 2, model.SourceManual)

		assert.Equal(t, 1.0, snap["a"].Value)
	})
}
