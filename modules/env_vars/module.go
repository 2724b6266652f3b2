package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Lookup replaces os.LookupEnv, for tests.
	Lookup func(string) (string, bool)
	// Environ replaces os.Environ, for tests.
	Environ func() []string
}

// Register registers the env_vars kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register("env_vars", m.newEnvVars)
}

// newEnvVars builds a Source writing environment variables as a map(string).
// With `names` only those variables are read and missing ones are left out;
// without it the whole environment is captured.
func (m *Module) newEnvVars(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("names", "output"); err != nil {
		return nil, err
	}
	output, err := spec.StringOr("output", "env")
	if err != nil {
		return nil, err
	}
	var names []string
	if spec.Has("names") {
		if names, err = spec.StringList("names"); err != nil {
			return nil, err
		}
	}

	lookup, environ := m.Lookup, m.Environ
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if environ == nil {
		environ = os.Environ
	}

	return processor.NewSource(spec.ID, nil, []processor.Decl{{Name: output, Type: cty.Map(cty.String)}},
		func(context.Context, processor.Values) (processor.Values, error) {
			envMap := make(map[string]cty.Value)
			if names != nil {
				for _, n := range names {
					if v, ok := lookup(n); ok {
						envMap[n] = cty.StringVal(v)
					}
				}
			} else {
				for _, e := range environ() {
					pair := strings.SplitN(e, "=", 2)
					if len(pair) == 2 {
						envMap[pair[0]] = cty.StringVal(pair[1])
					}
				}
			}

			if len(envMap) == 0 {
				return processor.Values{output: cty.MapValEmpty(cty.String)}, nil
			}
			return processor.Values{output: cty.MapVal(envMap)}, nil
		}), nil
}
