package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type funcModule func(r *Registry)

func (f funcModule) Register(r *Registry) { f(r) }

func echoFactory(spec Spec) (processor.Processor, error) {
	out, err := spec.String("output")
	if err != nil {
		return nil, err
	}
	return processor.NewSource(spec.ID, nil, []processor.Decl{{Name: out, Type: cty.String}},
		func(context.Context, processor.Values) (processor.Values, error) {
			return processor.Values{out: cty.StringVal("echo")}, nil
		}), nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	r := New()
	r.RegisterModules(funcModule(func(r *Registry) { r.Register("echo", echoFactory) }))
	heavy := true

	// --- Act ---
	p, err := r.Build(Spec{
		Kind:    "echo",
		ID:      "mapInfo",
		Args:    map[string]cty.Value{"output": cty.StringVal("info")},
		Options: processor.Options{OutputMapping: map[string]string{"info": "bbox"}, Heavy: &heavy},
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "mapInfo", p.ID())
	require.Len(t, p.Outputs(), 1)
	assert.Equal(t, "bbox", p.Outputs()[0].Name)
	assert.True(t, processor.IsHeavy(p))
	assert.Equal(t, []string{"echo"}, r.Kinds())
	assert.True(t, r.Has("echo"))
}

func TestRegistry_DuplicateKindPanics(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("echo", echoFactory)
	assert.Panics(t, func() { r.Register("echo", echoFactory) })
}

func TestRegistry_BuildErrors(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("echo", echoFactory)
	r.Register("liar", func(spec Spec) (processor.Processor, error) {
		return processor.NewSource("someone-else", nil, nil, nil), nil
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		_, err := r.Build(Spec{Kind: "nope", ID: "x"})
		require.ErrorIs(t, err, ErrUnknownKind)
		assert.ErrorContains(t, err, "echo, liar")
	})

	t.Run("missing argument", func(t *testing.T) {
		t.Parallel()
		_, err := r.Build(Spec{Kind: "echo", ID: "x"})
		var argErr *ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "output", argErr.Name)
		assert.ErrorContains(t, err, `processor "echo" "x"`)
	})

	t.Run("id mismatch", func(t *testing.T) {
		t.Parallel()
		_, err := r.Build(Spec{Kind: "liar", ID: "x"})
		var buildErr *BuildError
		require.ErrorAs(t, err, &buildErr)
		assert.ErrorContains(t, err, "someone-else")
	})

	t.Run("bad mapping", func(t *testing.T) {
		t.Parallel()
		_, err := r.Build(Spec{
			Kind:    "echo",
			ID:      "x",
			Args:    map[string]cty.Value{"output": cty.StringVal("info")},
			Options: processor.Options{OutputMapping: map[string]string{"missing": "y"}},
		})
		assert.Error(t, err)
	})
}

func TestRegistry_BuildAll(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register("echo", echoFactory)
	specs := []Spec{
		{Kind: "echo", ID: "a", Args: map[string]cty.Value{"output": cty.StringVal("a")}},
		{Kind: "echo", ID: "b", Args: map[string]cty.Value{"output": cty.StringVal("b")}},
	}

	procs, err := r.BuildAll(specs)
	require.NoError(t, err)
	require.Len(t, procs, 2)
	assert.Equal(t, "b", procs[1].ID())

	_, err = r.BuildAll(append(specs, Spec{Kind: "nope", ID: "c"}))
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestSpec_Arguments(t *testing.T) {
	t.Parallel()

	spec := Spec{Args: map[string]cty.Value{
		"url":          cty.StringVal("https://tiles.example/info.json"),
		"width":        cty.NumberIntVal(512),
		"ratio":        cty.NumberFloatVal(1.5),
		"heavy":        cty.True,
		"timeout":      cty.StringVal("250ms"),
		"layers":       cty.TupleVal([]cty.Value{cty.StringVal("roads"), cty.StringVal("lakes")}),
		"extract":      cty.ObjectVal(map[string]cty.Value{"bbox": cty.StringVal("extent")}),
		"element_type": cty.StringVal("list(number)"),
		"outputs":      cty.ObjectVal(map[string]cty.Value{"b": cty.StringVal("string"), "a": cty.StringVal("number")}),
		"nothing":      cty.NullVal(cty.String),
	}}

	t.Run("strings", func(t *testing.T) {
		t.Parallel()
		url, err := spec.String("url")
		require.NoError(t, err)
		assert.Equal(t, "https://tiles.example/info.json", url)

		_, err = spec.String("nothing")
		assert.ErrorIs(t, err, errRequired)

		def, err := spec.StringOr("missing", "fallback")
		require.NoError(t, err)
		assert.Equal(t, "fallback", def)

		// Numbers convert to strings.
		w, err := spec.StringOr("width", "")
		require.NoError(t, err)
		assert.Equal(t, "512", w)
	})

	t.Run("numbers and bools", func(t *testing.T) {
		t.Parallel()
		w, err := spec.IntOr("width", 256)
		require.NoError(t, err)
		assert.Equal(t, 512, w)

		h, err := spec.IntOr("height", 256)
		require.NoError(t, err)
		assert.Equal(t, 256, h)

		_, err = spec.IntOr("ratio", 1)
		assert.Error(t, err, "fractional numbers do not fit an int")

		_, err = spec.IntOr("url", 1)
		var argErr *ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "url", argErr.Name)

		heavy, err := spec.BoolOr("heavy", false)
		require.NoError(t, err)
		assert.True(t, heavy)
	})

	t.Run("durations", func(t *testing.T) {
		t.Parallel()
		d, err := spec.DurationOr("timeout", time.Second)
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, d)

		d, err = spec.DurationOr("missing", time.Second)
		require.NoError(t, err)
		assert.Equal(t, time.Second, d)

		_, err = spec.DurationOr("url", time.Second)
		assert.Error(t, err)
	})

	t.Run("collections", func(t *testing.T) {
		t.Parallel()
		layers, err := spec.StringList("layers")
		require.NoError(t, err)
		assert.Equal(t, []string{"roads", "lakes"}, layers)

		extract, err := spec.StringMap("extract")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"bbox": "extent"}, extract)

		empty, err := spec.StringMap("missing")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("types", func(t *testing.T) {
		t.Parallel()
		ty, err := spec.TypeOr("element_type", cty.String)
		require.NoError(t, err)
		assert.True(t, ty.Equals(cty.List(cty.Number)))

		ty, err = spec.TypeOr("missing", cty.String)
		require.NoError(t, err)
		assert.True(t, ty.Equals(cty.String))

		_, err = spec.TypeOr("url", cty.String)
		assert.Error(t, err)

		decls, err := spec.Decls("outputs")
		require.NoError(t, err)
		require.Len(t, decls, 2)
		assert.Equal(t, "a", decls[0].Name)
		assert.True(t, decls[0].Type.Equals(cty.Number))
		assert.Equal(t, "b", decls[1].Name)
	})

	t.Run("unknown arguments", func(t *testing.T) {
		t.Parallel()
		err := Spec{Args: map[string]cty.Value{"url": cty.StringVal("x"), "colour": cty.True, "bogus": cty.True}}.CheckArgs("url")
		require.Error(t, err)
		assert.ErrorContains(t, err, `argument "bogus"`)
		assert.ErrorContains(t, err, `argument "colour"`)
		assert.NoError(t, spec.CheckArgs("url", "width", "ratio", "heavy", "timeout", "layers", "extract", "element_type", "outputs", "nothing"))
	})
}
