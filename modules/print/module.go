package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines. Defaults to os.Stdout.
	Out io.Writer

	mu sync.Mutex
}

// Register registers the print kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register("print", m.newPrint)
}

// newPrint builds a Transform without outputs that writes its inputs, one
// `id: name = json` line each, in sorted order.
func (m *Module) newPrint(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("inputs"); err != nil {
		return nil, err
	}
	names, err := spec.StringList("inputs")
	if err != nil {
		return nil, err
	}
	inputs := make([]processor.Decl, len(names))
	for i, n := range names {
		inputs[i] = processor.Decl{Name: n}
	}

	id := spec.ID
	return processor.NewTransform(id, inputs, nil, func(ctx context.Context, in processor.Values) (processor.Values, error) {
		ctxlog.FromContext(ctx).Info("Printing input.", "count", len(in))

		var b strings.Builder
		for _, name := range in.Names() {
			v := in[name]
			raw, err := ctyjson.Marshal(v, v.Type())
			if err != nil {
				return nil, fmt.Errorf("failed to render %q: %w", name, err)
			}
			fmt.Fprintf(&b, "%s: %s = %s\n", id, name, raw)
		}

		if err := m.write(b.String()); err != nil {
			return nil, err
		}
		return processor.Values{}, nil
	}), nil
}

// write emits one block at a time so that concurrent prints do not
// interleave.
func (m *Module) write(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := io.WriteString(out, s)
	return err
}
