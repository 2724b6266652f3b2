package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/printgraph/internal/app"
	"github.com/specialistvlad/printgraph/internal/engine"
	"github.com/specialistvlad/printgraph/internal/storage"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// EnvTestLogs, when set to "true", dumps the captured log of every harness
// run into the test output.
const EnvTestLogs = "PRINTGRAPH_TEST_LOGS"

// Harness is a loaded template ready to be executed in a test.
type Harness struct {
	App      *app.App
	Compiled *app.Compiled
	Sink     *storage.MemorySink
	// Err is the template load or compile error, if any.
	Err  error
	Logs *SafeBuffer
}

// HarnessOption adjusts the app configuration before the app is created.
type HarnessOption func(*app.Config)

// WithEngine sets the executor configuration.
func WithEngine(cfg engine.Config) HarnessOption {
	return func(c *app.Config) { c.Engine = cfg }
}

// Setup writes files (relative path to content) into a temporary template
// directory, builds an App around it with an in-memory sink, and loads the
// template. Load errors are returned in Harness.Err rather than failing the
// test. Extra app options such as app.WithModules are passed through.
func Setup(t *testing.T, files map[string]string, hopts []HarnessOption, opts ...app.Option) *Harness {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := &app.Config{
		TemplatePath: dir,
		Storage:      app.StorageMemory,
		LogLevel:     "debug",
		LogFormat:    "text",
		Engine:       engine.Config{Workers: 4},
	}
	for _, o := range hopts {
		o(cfg)
	}

	logs := &SafeBuffer{}
	sink := storage.NewMemorySink()
	a, err := app.NewApp(context.Background(), logs, cfg, append([]app.Option{app.WithSink(sink)}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv(EnvTestLogs) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	h := &Harness{App: a, Sink: sink, Logs: logs}
	h.Compiled, h.Err = a.Cache().Get(context.Background(), dir)
	return h
}

// Execute decodes request against the template and runs it once.
func (h *Harness) Execute(ctx context.Context, t *testing.T, request string) (*engine.Result, error) {
	t.Helper()
	require.NoError(t, h.Err, "template did not load")

	values, err := h.Compiled.Template.DecodeRequest([]byte(request))
	require.NoError(t, err)
	return h.App.Execute(ctx, h.Compiled, values)
}

// Jobs plans a sweep over attr for request.
func (h *Harness) Jobs(t *testing.T, request, attr string, values ...string) []app.Job {
	t.Helper()
	require.NoError(t, h.Err, "template did not load")

	decoded, err := h.Compiled.Template.DecodeRequest([]byte(request))
	require.NoError(t, err)
	jobs, err := app.Plan(h.Compiled.Template, decoded, attr, values)
	require.NoError(t, err)
	return jobs
}

// String returns the string stored under name in the result's context.
func String(t *testing.T, res *engine.Result, name string) string {
	t.Helper()
	v, err := res.Context.Get(name)
	require.NoError(t, err)
	require.True(t, v.Type().Equals(cty.String), "%s is %s", name, v.Type().FriendlyName())
	return v.AsString()
}

// Strings returns the list of strings stored under name in the result's
// context.
func Strings(t *testing.T, res *engine.Result, name string) []string {
	t.Helper()
	v, err := res.Context.Get(name)
	require.NoError(t, err)
	out := make([]string, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, el := it.Element()
		out = append(out, el.AsString())
	}
	return out
}
