package testutil

import (
	"errors"
	"testing"

	"github.com/specialistvlad/printgraph/internal/engine"
	"github.com/stretchr/testify/require"
)

// AssertCompleted checks that exactly the given nodes completed, in
// topological order.
func AssertCompleted(t *testing.T, res *engine.Result, ids ...string) {
	t.Helper()
	require.NotNil(t, res)
	require.Equal(t, ids, res.Completed())
}

// RequireExecutionError asserts err is an *engine.ExecutionError and
// returns it.
func RequireExecutionError(t *testing.T, err error) *engine.ExecutionError {
	t.Helper()
	require.Error(t, err)
	var execErr *engine.ExecutionError
	require.True(t, errors.As(err, &execErr), "expected *engine.ExecutionError, got %T: %v", err, err)
	return execErr
}

// AssertRanConcurrently checks that the sleepers a and b overlapped in time.
func AssertRanConcurrently(t *testing.T, m *MockSleeperModule, a, b string) {
	t.Helper()
	ra, ok := m.Record(a)
	require.True(t, ok, "%s did not run", a)
	rb, ok := m.Record(b)
	require.True(t, ok, "%s did not run", b)
	require.True(t, ra.Overlaps(rb), "expected %s and %s to overlap", a, b)
}

// AssertRanBefore checks that sleeper a finished before b started.
func AssertRanBefore(t *testing.T, m *MockSleeperModule, a, b string) {
	t.Helper()
	ra, ok := m.Record(a)
	require.True(t, ok, "%s did not run", a)
	rb, ok := m.Record(b)
	require.True(t, ok, "%s did not run", b)
	require.False(t, rb.Start.Before(ra.End), "expected %s to finish before %s started", a, b)
}
