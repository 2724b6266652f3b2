package engine

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   Config
		want int
	}{
		{name: "zero workers uses GOMAXPROCS", in: Config{}, want: runtime.GOMAXPROCS(0)},
		{name: "explicit workers kept", in: Config{Workers: 3}, want: 3},
		{name: "max workers caps", in: Config{Workers: 10, MaxWorkers: 4}, want: 4},
		{name: "max workers below GOMAXPROCS", in: Config{MaxWorkers: 1}, want: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.in.withDefaults().Workers)
		})
	}
}

func TestNewSerial_ForcesOneWorker(t *testing.T) {
	t.Parallel()
	exec := NewSerial(Config{Workers: 8, HeavyLimit: 2})
	assert.Equal(t, 1, exec.Config().Workers)
	assert.Equal(t, 2, exec.Config().HeavyLimit)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	// --- Arrange ---
	t.Setenv(EnvWorkers, "6")
	t.Setenv(EnvMaxWorkers, "not-a-number")
	t.Setenv(EnvHeavyLimit, "2")

	// --- Act ---
	cfg := LoadConfig(Config{Workers: 1, MaxWorkers: 3, Timeout: time.Second})

	// --- Assert ---
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxWorkers, "unparsable values leave the field untouched")
	assert.Equal(t, 2, cfg.HeavyLimit)
	assert.Equal(t, time.Second, cfg.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Config{}.Validate())
	require.NoError(t, Config{Workers: 4, MaxWorkers: 8, HeavyLimit: 1, Timeout: time.Minute}.Validate())

	for name, cfg := range map[string]Config{
		"workers":     {Workers: -1},
		"max workers": {MaxWorkers: -1},
		"heavy limit": {HeavyLimit: -2},
		"timeout":     {Timeout: -time.Second},
	} {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestParseCancelPolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]CancelPolicy{
		"":                  RunToCompletion,
		"run-to-completion": RunToCompletion,
		"EAGER":             Eager,
		" eager ":           Eager,
	} {
		got, err := ParseCancelPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		if in != "" {
			assert.Equal(t, want.String(), got.String())
		}
	}

	_, err := ParseCancelPolicy("lazy")
	assert.ErrorContains(t, err, "invalid cancel policy")
}

func TestErrors_Messages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "execution timed out after 2s", (&TimeoutError{After: 2 * time.Second}).Error())
	assert.Equal(t, "execution deadline exceeded", (&TimeoutError{}).Error())

	err := &ExecutionError{ExecutionID: "abc", NodeID: "B", Cause: &TimeoutError{}}
	assert.Equal(t, `execution abc failed at node "B": execution deadline exceeded`, err.Error())
	assert.ErrorIs(t, err, ErrExecution)

	viol := &ContextViolationError{NodeID: "B", Name: "x", Reason: "did not produce declared output"}
	assert.Equal(t, `node "B": did not produce declared output "x"`, viol.Error())

	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "Status(42)", Status(42).String())
}
