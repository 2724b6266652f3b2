package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// ErrMockFailure is returned by sleeper nodes declared with `fail = true`.
var ErrMockFailure = errors.New("mock failure")

// MockSleeperModule is a shared, self-contained module for concurrency tests.
// It registers the "sleeper" kind and records the execution time of every
// node built from it:
//
//	processor "sleeper" "B" {
//	  inputs = ["a"]
//	  output = "b"
//	  sleep  = "50ms"
//	}
//
// The output value is the node id.
type MockSleeperModule struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	active         int
	peak           int
	completionChan chan<- string
}

// NewMockSleeperModule creates a new sleeper module for testing. When
// completionChan is not nil, every finished node id is sent to it.
func NewMockSleeperModule(completionChan chan<- string) *MockSleeperModule {
	return &MockSleeperModule{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		completionChan: completionChan,
	}
}

// Register registers the "sleeper" kind.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	r.Register("sleeper", m.newSleeper)
}

// Record returns the execution record of id.
func (m *MockSleeperModule) Record(id string) (ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ExecutionTimes[id]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// Peak returns the highest number of sleepers that ran at the same time.
func (m *MockSleeperModule) Peak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

func (m *MockSleeperModule) newSleeper(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("inputs", "output", "sleep", "fail"); err != nil {
		return nil, err
	}
	var inputs []processor.Decl
	if spec.Has("inputs") {
		names, err := spec.StringList("inputs")
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			inputs = append(inputs, processor.Decl{Name: n, Type: cty.DynamicPseudoType})
		}
	}
	output, err := spec.StringOr("output", "")
	if err != nil {
		return nil, err
	}
	sleep, err := spec.DurationOr("sleep", 0)
	if err != nil {
		return nil, err
	}
	fail, err := spec.BoolOr("fail", false)
	if err != nil {
		return nil, err
	}

	var outputs []processor.Decl
	if output != "" {
		outputs = []processor.Decl{{Name: output, Type: cty.String}}
	}

	id := spec.ID
	fn := func(ctx context.Context, _ processor.Values) (processor.Values, error) {
		m.enter()
		start := time.Now()
		var runErr error
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			runErr = ctx.Err()
		}
		end := time.Now()
		m.leave(id, ExecutionRecord{Start: start, End: end})

		if runErr != nil {
			return nil, runErr
		}
		if fail {
			return nil, ErrMockFailure
		}
		if output == "" {
			return processor.Values{}, nil
		}
		return processor.Values{output: cty.StringVal(id)}, nil
	}

	if len(inputs) == 0 {
		return processor.NewSource(id, nil, outputs, fn), nil
	}
	return processor.NewTransform(id, inputs, outputs, fn), nil
}

func (m *MockSleeperModule) enter() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
}

func (m *MockSleeperModule) leave(id string, rec ExecutionRecord) {
	m.mu.Lock()
	m.active--
	m.ExecutionTimes[id] = &rec
	m.mu.Unlock()

	if m.completionChan != nil {
		m.completionChan <- id
	}
}
