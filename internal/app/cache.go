package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/graph"
	"github.com/specialistvlad/printgraph/internal/model"
	"github.com/specialistvlad/printgraph/internal/registry"
	"golang.org/x/sync/singleflight"
)

// Compiled is a loaded template together with its compiled graph. It is
// immutable and shared by every execution of the template.
type Compiled struct {
	Template   *model.Template
	Definition *graph.Definition
}

// TemplateCache compiles each template path once. Concurrent callers asking
// for the same path wait for a single compilation; failures are not cached.
type TemplateCache struct {
	registry *registry.Registry
	group    singleflight.Group

	mu       sync.RWMutex
	entries  map[string]*Compiled
	compiles atomic.Int64
}

// NewTemplateCache creates an empty cache building processors from reg.
func NewTemplateCache(reg *registry.Registry) *TemplateCache {
	return &TemplateCache{registry: reg, entries: make(map[string]*Compiled)}
}

// Get returns the compiled template at path, loading and compiling it on
// first use.
func (c *TemplateCache) Get(ctx context.Context, path string) (*Compiled, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template path %s: %w", path, err)
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return entry, nil
		}

		tmpl, err := model.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		compiled, err := Compile(c.registry, tmpl)
		c.compiles.Add(1)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = compiled
		c.mu.Unlock()
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Template ready.", "path", key, "shared", shared)
	return v.(*Compiled), nil
}

// Compiles returns how many compilations the cache has run.
func (c *TemplateCache) Compiles() int64 {
	return c.compiles.Load()
}

// Compile builds every processor of tmpl and compiles them into a graph
// seeded by the template's attributes.
func Compile(reg *registry.Registry, tmpl *model.Template) (*Compiled, error) {
	procs, err := reg.BuildAll(tmpl.Processors)
	if err != nil {
		return nil, err
	}
	def, err := graph.Compile(procs, tmpl.InitialTypes())
	if err != nil {
		return nil, err
	}
	return &Compiled{Template: tmpl, Definition: def}, nil
}
