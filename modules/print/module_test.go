package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestPrint(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var buf bytes.Buffer
	r := registry.New()
	r.RegisterModules(&Module{Out: &buf})
	p, err := r.Build(registry.Spec{Kind: "print", ID: "debug", Args: map[string]cty.Value{
		"inputs": cty.TupleVal([]cty.Value{cty.StringVal("rotation"), cty.StringVal("bbox")}),
	}})
	require.NoError(t, err)

	// --- Act ---
	out, err := p.Execute(context.Background(), processor.Values{
		"rotation": cty.NumberIntVal(90),
		"bbox":     cty.ListVal([]cty.Value{cty.NumberIntVal(5), cty.NumberIntVal(45)}),
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, p.Outputs())
	assert.Equal(t, "debug: bbox = [5,45]\ndebug: rotation = 90\n", buf.String())
}

func TestPrint_RequiresInputs(t *testing.T) {
	t.Parallel()
	r := registry.New()
	r.RegisterModules(&Module{})
	_, err := r.Build(registry.Spec{Kind: "print", ID: "debug"})
	assert.Error(t, err)
}
