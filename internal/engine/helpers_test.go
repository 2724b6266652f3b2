package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/printgraph/internal/graph"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/valuectx"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func decls(names ...string) []processor.Decl {
	out := make([]processor.Decl, len(names))
	for i, n := range names {
		out[i] = processor.Decl{Name: n}
	}
	return out
}

func transform(id string, ins, outs []string, fn processor.Func) processor.Processor {
	return processor.NewTransform(id, decls(ins...), decls(outs...), fn)
}

func mustCompile(t *testing.T, procs []processor.Processor, initial map[string]cty.Type) *graph.Definition {
	t.Helper()
	def, err := graph.Compile(procs, initial)
	require.NoError(t, err)
	return def
}

func seeded(t *testing.T, values map[string]cty.Value) *valuectx.Context {
	t.Helper()
	vc := valuectx.New()
	require.NoError(t, vc.Seed(values))
	return vc
}

// renderLayer imitates a layer renderer: its output depends on the layer
// name, the bbox and the rotation.
func renderLayer(id, layer, out string) processor.Processor {
	return processor.NewTransform(id,
		[]processor.Decl{{Name: "bbox", Type: cty.List(cty.Number)}, {Name: "rotation", Type: cty.Number}},
		[]processor.Decl{{Name: out, Type: cty.String}},
		func(_ context.Context, in processor.Values) (processor.Values, error) {
			rot, _ := in["rotation"].AsBigFloat().Int64()
			uri := fmt.Sprintf("mem://%s/%d/%d.png", layer, in["bbox"].LengthInt(), rot)
			return processor.Values{out: cty.StringVal(uri)}, nil
		})
}

// mapPrint returns the nodes of a rotated map print: A fetches the bbox, B
// and C render one layer each and D collects both into layerGraphics.
func mapPrint() []processor.Processor {
	return []processor.Processor{
		processor.NewSource("A", nil,
			[]processor.Decl{{Name: "bbox", Type: cty.List(cty.Number)}},
			func(context.Context, processor.Values) (processor.Values, error) {
				return processor.Values{"bbox": cty.ListVal([]cty.Value{
					cty.NumberIntVal(5), cty.NumberIntVal(45), cty.NumberIntVal(11), cty.NumberIntVal(48),
				})}, nil
			}),
		renderLayer("B", "roads", "layerImage"),
		renderLayer("C", "lakes", "layerImage2"),
		processor.NewTransform("D",
			[]processor.Decl{{Name: "layerImage", Type: cty.String}, {Name: "layerImage2", Type: cty.String}},
			[]processor.Decl{{Name: "layerGraphics", Type: cty.List(cty.String)}},
			func(_ context.Context, in processor.Values) (processor.Values, error) {
				return processor.Values{"layerGraphics": cty.ListVal([]cty.Value{in["layerImage"], in["layerImage2"]})}, nil
			}),
	}
}

// recorder collects start and end times of processor executions.
type recorder struct {
	mu    sync.Mutex
	start map[string]time.Time
	end   map[string]time.Time
}

func newRecorder() *recorder {
	return &recorder{start: map[string]time.Time{}, end: map[string]time.Time{}}
}

func (r *recorder) sleeper(id string, ins, outs []string, d time.Duration) processor.Processor {
	return transform(id, ins, outs, func(ctx context.Context, _ processor.Values) (processor.Values, error) {
		r.mu.Lock()
		r.start[id] = time.Now()
		r.mu.Unlock()

		time.Sleep(d)

		r.mu.Lock()
		r.end[id] = time.Now()
		r.mu.Unlock()

		out := processor.Values{}
		for _, o := range outs {
			out[o] = cty.StringVal(id)
		}
		return out, nil
	})
}

func (r *recorder) times(id string) (time.Time, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start[id], r.end[id]
}

func (r *recorder) ran(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.start[id]
	return ok
}
