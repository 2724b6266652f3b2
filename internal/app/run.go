package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/engine"
	"github.com/specialistvlad/printgraph/internal/model"
	"github.com/specialistvlad/printgraph/internal/valuectx"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Job is one execution of a template: a label for its result document and
// the request attributes it is seeded with.
type Job struct {
	Label  string
	Values map[string]cty.Value
}

// NodeResult is the outcome of one node in a result document.
type NodeResult struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// JobResult is the result document written for every job.
type JobResult struct {
	Label       string          `json:"label"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Attributes  json.RawMessage `json:"attributes"`
	Context     json.RawMessage `json:"context,omitempty"`
	Nodes       []NodeResult    `json:"nodes,omitempty"`
	FailedNode  string          `json:"failed_node,omitempty"`
	Completed   []string        `json:"completed,omitempty"`
	DurationMS  int64           `json:"duration_ms"`
	Error       string          `json:"error,omitempty"`

	err error
}

// Err returns the job's error, if any.
func (r *JobResult) Err() error { return r.err }

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	compiled, err := a.cache.Get(ctx, a.config.TemplatePath)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	a.logger.Info("Template compiled.", "processors", compiled.Definition.Len(), "attributes", len(compiled.Template.Attributes))

	var request []byte
	if a.config.RequestPath != "" {
		request, err = os.ReadFile(a.config.RequestPath)
		if err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}
	}
	values, err := compiled.Template.DecodeRequest(request)
	if err != nil {
		return err
	}

	jobs, err := Plan(compiled.Template, values, a.config.SweepAttribute, a.config.SweepValues)
	if err != nil {
		return err
	}

	a.logger.Info("🚀 Starting execution.", "jobs", len(jobs))
	results := a.Sweep(ctx, compiled, jobs)

	if a.config.OutDir != "" {
		if err := writeResults(a.config.OutDir, results); err != nil {
			return err
		}
	}

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", r.Label, r.err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info("🏁 Execution finished.", "jobs", len(jobs))
	return nil
}

// Plan turns one decoded request into jobs. Without a sweep there is a single
// job labelled "result"; otherwise there is one job per sweep value, each
// overriding attr with that value.
func Plan(tmpl *model.Template, values map[string]cty.Value, attr string, sweep []string) ([]Job, error) {
	if attr == "" {
		return []Job{{Label: "result", Values: values}}, nil
	}

	jobs := make([]Job, 0, len(sweep))
	seen := make(map[string]bool, len(sweep))
	for _, raw := range sweep {
		label := attr + "-" + sanitizeLabel(raw)
		if seen[label] {
			return nil, fmt.Errorf("sweep value %q given twice", raw)
		}
		seen[label] = true

		v, err := tmpl.WithOverrides(values, map[string]cty.Value{attr: cty.StringVal(raw)})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{Label: label, Values: v})
	}
	return jobs, nil
}

// Sweep runs the jobs concurrently against the same compiled template, at
// most as many at once as the executor has workers. Each job gets its own
// value context, so a failure in one job never affects the others. Results
// are returned in job order.
func (a *App) Sweep(ctx context.Context, compiled *Compiled, jobs []Job) []*JobResult {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	results := make([]*JobResult, len(jobs))

	// Job errors are kept in results, so the group only bounds and joins.
	var g errgroup.Group
	g.SetLimit(a.executor.Config().Workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = a.runJob(ctx, compiled, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Execute runs compiled once with the given request attributes.
func (a *App) Execute(ctx context.Context, compiled *Compiled, values map[string]cty.Value) (*engine.Result, error) {
	vc := valuectx.New()
	vc.DeclareAll(compiled.Template.InitialTypes())
	if err := vc.Seed(values); err != nil {
		return nil, err
	}
	return a.executor.Execute(ctx, compiled.Definition, vc)
}

func (a *App) runJob(ctx context.Context, compiled *Compiled, job Job) *JobResult {
	logger := ctxlog.FromContext(ctx).With("job", job.Label)
	ctx = ctxlog.WithLogger(ctx, logger)

	out := &JobResult{Label: job.Label}
	attrs, err := encodeValues(job.Values)
	if err != nil {
		out.err = err
		out.Error = err.Error()
		return out
	}
	out.Attributes = attrs

	started := time.Now()
	res, err := a.Execute(ctx, compiled, job.Values)
	out.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		out.err = err
		out.Error = err.Error()
		var execErr *engine.ExecutionError
		if errors.As(err, &execErr) {
			out.ExecutionID = execErr.ExecutionID
			out.FailedNode = execErr.NodeID
			out.Completed = execErr.Completed
		}
		logger.Error("Job failed.", "error", err)
		return out
	}

	out.ExecutionID = res.ExecutionID
	snapshot, err := res.Context.Snapshot()
	if err != nil {
		out.err = err
		out.Error = err.Error()
		return out
	}
	out.Context = snapshot
	for _, n := range res.Nodes {
		nr := NodeResult{ID: n.ID, Status: n.Status.String(), DurationMS: n.Duration.Milliseconds()}
		if n.Err != nil {
			nr.Error = n.Err.Error()
		}
		out.Nodes = append(out.Nodes, nr)
	}
	logger.Info("Job finished.", "executionID", res.ExecutionID, "duration", res.Duration)
	return out
}

func encodeValues(values map[string]cty.Value) (json.RawMessage, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	raw := make(map[string]json.RawMessage, len(values))
	for _, name := range names {
		b, err := valuectx.EncodeJSON(values[name])
		if err != nil {
			return nil, fmt.Errorf("failed to encode attribute %q: %w", name, err)
		}
		raw[name] = b
	}
	return json.Marshal(raw)
}

func writeResults(dir string, results []*JobResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	for _, r := range results {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result %s: %w", r.Label, err)
		}
		path := filepath.Join(dir, r.Label+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write result %s: %w", path, err)
		}
	}
	return nil
}

func sanitizeLabel(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
