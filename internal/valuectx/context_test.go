package valuectx

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestContext_GetSet(t *testing.T) {
	t.Parallel()

	t.Run("get after set", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Set("rotation", cty.NumberIntVal(90)))

		v, err := c.Get("rotation")
		require.NoError(t, err)
		assert.True(t, v.RawEquals(cty.NumberIntVal(90)))
		assert.True(t, c.Has("rotation"))
	})

	t.Run("missing value", func(t *testing.T) {
		c := New()
		_, err := c.Get("bbox")

		var missing *MissingValueError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "bbox", missing.Name)
		assert.ErrorIs(t, err, ErrMissingValue)
	})

	t.Run("second write is rejected and the first value is kept", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Set("bbox", cty.StringVal("first")))

		err := c.Set("bbox", cty.StringVal("second"))
		var dup *DuplicateWriteError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "bbox", dup.Name)
		assert.ErrorIs(t, err, ErrDuplicateWrite)

		v, err := c.Get("bbox")
		require.NoError(t, err)
		assert.Equal(t, "first", v.AsString())
	})

	t.Run("unknown values are rejected", func(t *testing.T) {
		c := New()
		err := c.Set("bbox", cty.UnknownVal(cty.String))

		var typeErr *TypeError
		require.ErrorAs(t, err, &typeErr)
		assert.False(t, c.Has("bbox"))
	})
}

func TestContext_DeclaredTypes(t *testing.T) {
	t.Parallel()

	t.Run("value is converted to the declared type", func(t *testing.T) {
		c := New()
		c.Declare("scale", cty.String)
		require.NoError(t, c.Set("scale", cty.NumberIntVal(25000)))

		v, err := c.Get("scale")
		require.NoError(t, err)
		assert.Equal(t, cty.String, v.Type())
		assert.Equal(t, "25000", v.AsString())
	})

	t.Run("tuple is converted to a declared list", func(t *testing.T) {
		c := New()
		c.DeclareAll(map[string]cty.Type{"bbox": cty.List(cty.Number)})
		require.NoError(t, c.Set("bbox", cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)})))

		v, err := c.Get("bbox")
		require.NoError(t, err)
		assert.True(t, v.Type().Equals(cty.List(cty.Number)))
	})

	t.Run("inconvertible value is a type error", func(t *testing.T) {
		c := New()
		c.Declare("rotation", cty.Number)

		err := c.Set("rotation", cty.StringVal("north"))
		var typeErr *TypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t, "rotation", typeErr.Name)
		assert.Contains(t, err.Error(), "not usable as number")
	})

	t.Run("dynamic type accepts anything", func(t *testing.T) {
		c := New()
		c.Declare("anything", cty.DynamicPseudoType)
		require.NoError(t, c.Set("anything", cty.BoolVal(true)))
	})
}

func TestContext_Seed(t *testing.T) {
	t.Parallel()

	c := New()
	err := c.Seed(map[string]cty.Value{
		"rotation": cty.NumberIntVal(270),
		"dpi":      cty.NumberIntVal(72),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dpi", "rotation"}, c.Names())
	assert.Equal(t, 2, c.Len())

	err = c.Seed(map[string]cty.Value{"dpi": cty.NumberIntVal(300)})
	assert.ErrorIs(t, err, ErrDuplicateWrite)
}

func TestContext_Snapshot(t *testing.T) {
	t.Parallel()

	build := func(order []string) *Context {
		c := New()
		values := map[string]cty.Value{
			"rotation":      cty.NumberIntVal(90),
			"layerGraphics": cty.ListVal([]cty.Value{cty.StringVal("file:///a.png"), cty.StringVal("file:///b.png")}),
			"bbox":          cty.ListVal([]cty.Value{cty.NumberFloatVal(-1.5), cty.NumberIntVal(2)}),
		}
		for _, name := range order {
			require.NoError(t, c.Set(name, values[name]))
		}
		return c
	}

	a, err := build([]string{"rotation", "layerGraphics", "bbox"}).Snapshot()
	require.NoError(t, err)
	b, err := build([]string{"bbox", "rotation", "layerGraphics"}).Snapshot()
	require.NoError(t, err)

	assert.Equal(t, a, b, "write order must not affect the snapshot")
	assert.JSONEq(t, `{"bbox":[-1.5,2],"layerGraphics":["file:///a.png","file:///b.png"],"rotation":90}`, string(a))
}

func TestContext_Object(t *testing.T) {
	t.Parallel()

	c := New()
	assert.True(t, c.Object().RawEquals(cty.EmptyObjectVal))

	require.NoError(t, c.Set("a", cty.StringVal("x")))
	obj := c.Object()
	assert.Equal(t, "x", obj.GetAttr("a").AsString())
}

func TestContext_ConcurrentWritersOfDistinctNames(t *testing.T) {
	t.Parallel()

	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("v%02d", i)
			assert.NoError(t, c.Set(name, cty.NumberIntVal(int64(i))))
			_, err := c.Get(name)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 64, c.Len())
}

func TestContext_ConcurrentWritersOfSameName(t *testing.T) {
	t.Parallel()

	c := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if c.Set("layerGraphics", cty.NumberIntVal(int64(i))) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, successes, "exactly one writer may win")
}

func TestContext_SetAll(t *testing.T) {
	t.Parallel()

	t.Run("writes every value", func(t *testing.T) {
		c := New()
		c.Declare("rotation", cty.Number)

		err := c.SetAll(map[string]cty.Value{
			"rotation":  cty.StringVal("90"),
			"layerName": cty.StringVal("roads"),
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"layerName", "rotation"}, c.Names())
		v, err := c.Get("rotation")
		require.NoError(t, err)
		assert.True(t, v.Type().Equals(cty.Number))
	})

	t.Run("one bad value leaves the context unchanged", func(t *testing.T) {
		// --- Arrange ---
		c := New()
		c.Declare("b", cty.Number)

		// --- Act ---
		err := c.SetAll(map[string]cty.Value{
			"a": cty.StringVal("x"),
			"b": cty.StringVal("notnum"),
		})

		// --- Assert ---
		var typeErr *TypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t, "b", typeErr.Name)
		assert.False(t, c.Has("a"))
		assert.Zero(t, c.Len())
	})

	t.Run("a name already bound rejects the whole batch", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Set("b", cty.True))

		err := c.SetAll(map[string]cty.Value{"a": cty.True, "b": cty.False})

		require.ErrorIs(t, err, ErrDuplicateWrite)
		assert.Equal(t, []string{"b"}, c.Names())
	})
}
