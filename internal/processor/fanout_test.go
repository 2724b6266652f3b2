package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func numbers(n int) cty.Value {
	vals := make([]cty.Value, n)
	for i := range vals {
		vals[i] = cty.NumberIntVal(int64(i))
	}
	return cty.ListVal(vals)
}

func TestFanout_MergesInInputOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Later items finish first, so completion order is the reverse of input order.
	const n = 8
	p, err := NewFanout(FanoutConfig{
		ID:     "render",
		Over:   Decl{Name: "layers", Type: cty.List(cty.Number)},
		Shared: []Decl{{Name: "prefix", Type: cty.String}},
		Output: Decl{Name: "layerGraphics", Type: cty.List(cty.String)},
		Limit:  n,
		Each: func(ctx context.Context, index int, item cty.Value, shared Values) (cty.Value, error) {
			time.Sleep(time.Duration(n-index) * 5 * time.Millisecond)
			return cty.StringVal(shared["prefix"].AsString() + item.AsBigFloat().String()), nil
		},
	})
	require.NoError(t, err)

	// --- Act ---
	out, err := p.Execute(context.Background(), Values{
		"layers": numbers(n),
		"prefix": cty.StringVal("layer-"),
	})

	// --- Assert ---
	require.NoError(t, err)
	got := out["layerGraphics"].AsValueSlice()
	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, "layer-"+cty.NumberIntVal(int64(i)).AsBigFloat().String(), v.AsString())
	}
	assert.Equal(t, Fanout, p.Variant())
}

func TestFanout_ConvertsResultsToElementType(t *testing.T) {
	t.Parallel()

	p, err := NewFanout(FanoutConfig{
		ID:     "stringify",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.String)},
		Each: func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) {
			return item, nil
		},
	})
	require.NoError(t, err)

	out, err := p.Execute(context.Background(), Values{"in": numbers(2)})
	require.NoError(t, err)
	assert.True(t, out["out"].Type().Equals(cty.List(cty.String)))
	assert.Equal(t, "1", out["out"].Index(cty.NumberIntVal(1)).AsString())
}

func TestFanout_RespectsLimit(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	p, err := NewFanout(FanoutConfig{
		ID:     "bounded",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Number)},
		Limit:  2,
		Each: func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) {
			now := running.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return item, nil
		},
	})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), Values{"in": numbers(8)})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFanout_LimitFromContext(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	p, err := NewFanout(FanoutConfig{
		ID:     "ctxbounded",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Number)},
		Each: func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) {
			now := running.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return item, nil
		},
	})
	require.NoError(t, err)

	_, err = p.Execute(WithFanoutLimit(context.Background(), 1), Values{"in": numbers(4)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestFanout_FirstErrorAbortsNode(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	boom := errors.New("render failed")
	var mu sync.Mutex
	var started []int
	p, err := NewFanout(FanoutConfig{
		ID:     "failing",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Number)},
		Limit:  1,
		Each: func(ctx context.Context, index int, item cty.Value, _ Values) (cty.Value, error) {
			mu.Lock()
			started = append(started, index)
			mu.Unlock()
			if index == 1 {
				return cty.NilVal, boom
			}
			return item, nil
		},
	})
	require.NoError(t, err)

	// --- Act ---
	_, err = p.Execute(context.Background(), Values{"in": numbers(6)})

	// --- Assert ---
	require.ErrorIs(t, err, boom)
	var itemErr *FanoutItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 1, itemErr.Index)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1}, started, "items after the failure must not start")
}

func TestFanout_EmptyAndNullInput(t *testing.T) {
	t.Parallel()

	p, err := NewFanout(FanoutConfig{
		ID:     "empty",
		Over:   Decl{Name: "in", Type: cty.List(cty.String)},
		Output: Decl{Name: "out", Type: cty.List(cty.String)},
		Each: func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) {
			return item, nil
		},
	})
	require.NoError(t, err)

	out, err := p.Execute(context.Background(), Values{"in": cty.ListValEmpty(cty.String)})
	require.NoError(t, err)
	assert.True(t, out["out"].RawEquals(cty.ListValEmpty(cty.String)))

	out, err = p.Execute(context.Background(), Values{"in": cty.NullVal(cty.List(cty.String))})
	require.NoError(t, err)
	assert.Equal(t, 0, out["out"].LengthInt())
}

func TestNewFanout_Validation(t *testing.T) {
	t.Parallel()

	each := func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) { return item, nil }

	testCases := []struct {
		name    string
		cfg     FanoutConfig
		wantErr string
	}{
		{
			name:    "no item function",
			cfg:     FanoutConfig{ID: "x", Over: Decl{Name: "in", Type: cty.List(cty.String)}, Output: Decl{Name: "out", Type: cty.List(cty.String)}},
			wantErr: "no item function",
		},
		{
			name:    "scalar input",
			cfg:     FanoutConfig{ID: "x", Over: Decl{Name: "in", Type: cty.String}, Output: Decl{Name: "out", Type: cty.List(cty.String)}, Each: each},
			wantErr: "must be a list",
		},
		{
			name:    "scalar output",
			cfg:     FanoutConfig{ID: "x", Over: Decl{Name: "in", Type: cty.List(cty.String)}, Output: Decl{Name: "out", Type: cty.String}, Each: each},
			wantErr: "must be a list",
		},
		{
			name:    "negative limit",
			cfg:     FanoutConfig{ID: "x", Over: Decl{Name: "in", Type: cty.List(cty.String)}, Output: Decl{Name: "out", Type: cty.List(cty.String)}, Each: each, Limit: -1},
			wantErr: "must not be negative",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFanout(tc.cfg)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestFanout_MixedItemTypesReturnAnError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p, err := NewFanout(FanoutConfig{
		ID:     "mixed",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Object(map[string]cty.Type{"v": cty.DynamicPseudoType}))},
		Each: func(_ context.Context, index int, _ cty.Value, _ Values) (cty.Value, error) {
			if index == 0 {
				return cty.ObjectVal(map[string]cty.Value{"v": cty.StringVal("s")}), nil
			}
			return cty.ObjectVal(map[string]cty.Value{"v": cty.TupleVal([]cty.Value{cty.StringVal("a")})}), nil
		},
	})
	require.NoError(t, err)

	// --- Act ---
	var execErr error
	assert.NotPanics(t, func() {
		_, execErr = p.Execute(context.Background(), Values{"in": numbers(2)})
	})

	// --- Assert ---
	assert.Error(t, execErr)
}

func TestFanout_ItemPanicIsAnError(t *testing.T) {
	t.Parallel()

	p, err := NewFanout(FanoutConfig{
		ID:     "panicky",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Number)},
		Limit:  2,
		Each: func(_ context.Context, index int, item cty.Value, _ Values) (cty.Value, error) {
			if index == 1 {
				panic("bad raster")
			}
			return item, nil
		},
	})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), Values{"in": numbers(3)})

	var itemErr *FanoutItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 1, itemErr.Index)
	assert.Contains(t, err.Error(), "bad raster")
}

// countingSlots grants at most free extra slots.
type countingSlots struct {
	mu       sync.Mutex
	free     int64
	acquired int64
}

func (s *countingSlots) TryAcquire(n int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.free < n {
		return false
	}
	s.free -= n
	s.acquired += n
	return true
}

func (s *countingSlots) Release(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free += n
}

func TestFanout_SharedSlotsBoundItems(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var running, peak atomic.Int32
	p, err := NewFanout(FanoutConfig{
		ID:     "shared",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Number)},
		Limit:  8,
		Each: func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) {
			now := running.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return item, nil
		},
	})
	require.NoError(t, err)
	slots := &countingSlots{free: 1}

	// --- Act ---
	out, err := p.Execute(WithSlots(context.Background(), slots), Values{"in": numbers(6)})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 6, out["out"].LengthInt())
	assert.LessOrEqual(t, peak.Load(), int32(2), "one item on the node's slot plus one extra slot")
	assert.Equal(t, int64(1), slots.acquired)
	assert.Equal(t, int64(1), slots.free, "extra slots are released")
}

func TestFanout_NoFreeSlotsStillProgresses(t *testing.T) {
	t.Parallel()

	p, err := NewFanout(FanoutConfig{
		ID:     "starved",
		Over:   Decl{Name: "in", Type: cty.List(cty.Number)},
		Output: Decl{Name: "out", Type: cty.List(cty.Number)},
		Each: func(_ context.Context, _ int, item cty.Value, _ Values) (cty.Value, error) {
			return item, nil
		},
	})
	require.NoError(t, err)

	out, err := p.Execute(WithSlots(context.Background(), &countingSlots{}), Values{"in": numbers(4)})

	require.NoError(t, err)
	assert.True(t, out["out"].Equals(numbers(4)).True())
}
