package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Model(t *testing.T) {
	t.Run("SWESYNTH_MODEL_ID overrides default", func(t *testing.T) {
		t.Setenv("SWESYNTH_MODEL_ID", "claude-override")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "claude-override", cfg.Model.Identifier)
	})

	t.Run("unset SWESYNTH_MODEL_ID leaves default untouched", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gpt-4o-mini", cfg.Model.Identifier)
	})

	t.Run("SWESYNTH_MODEL_ENDPOINT overrides default", func(t *testing.T) {
		t.Setenv("SWESYNTH_MODEL_ENDPOINT", "http://localhost:9999/v1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://localhost:9999/v1", cfg.Model.Endpoint)
	})

	t.Run("SWESYNTH_MODEL_API_KEY sets key not present in YAML", func(t *testing.T) {
		t.Setenv("SWESYNTH_MODEL_API_KEY", "secret-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "secret-key", cfg.Model.APIKey)
	})
}

func TestEnvOverrides_GitToken(t *testing.T) {
	t.Setenv("SWESYNTH_GIT_TOKEN", "ghp_test")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "ghp_test", cfg.Git.CloneToken)
}

func TestEnvOverrides_ConcurrencyCaps(t *testing.T) {
	t.Run("valid values override defaults", func(t *testing.T) {
		t.Setenv("SWESYNTH_EXEC_CONCURRENCY", "8")
		t.Setenv("SWESYNTH_MODEL_CONCURRENCY", "32")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 8, cfg.Limits.ExecConcurrency)
		assert.Equal(t, 32, cfg.Limits.ModelConcurrency)
	})

	t.Run("non-numeric or non-positive values are ignored", func(t *testing.T) {
		t.Setenv("SWESYNTH_EXEC_CONCURRENCY", "not-a-number")
		t.Setenv("SWESYNTH_MODEL_CONCURRENCY", "-3")

		cfg := DefaultConfig()
		before := cfg.Limits
		cfg.applyEnvOverrides()

		assert.Equal(t, before, cfg.Limits)
	})
}

func TestEnvOverrides_CallGraphTimeout(t *testing.T) {
	t.Setenv("SWESYNTH_CALLGRAPH_TIMEOUT", "3h")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "3h", cfg.Container.CallGraphTimeout)
	assert.Equal(t, 3*60*60, int(cfg.CallGraphTimeoutDuration().Seconds()))
}

func TestEnvOverrides_Debug(t *testing.T) {
	t.Setenv("SWESYNTH_DEBUG", "1")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.True(t, cfg.Logging.Debug)
}
