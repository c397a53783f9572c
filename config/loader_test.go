package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 768, cfg.Index.Dimension)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 3, cfg.Consensus.SampleCount)
	assert.Equal(t, 4, cfg.Planner.MaxHops)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoplite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
  shutdown_timeout: 5s
index:
  dimension: 4
embedding:
  dimensions: 4
  model: test-embed
planner:
  max_hops: 6
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 4, cfg.Index.Dimension)
	assert.Equal(t, "test-embed", cfg.Embedding.Model)
	assert.Equal(t, 6, cfg.Planner.MaxHops)
	// untouched sections keep defaults
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/hoplite.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOPLITE_SERVER_ADDR", ":7000")
	t.Setenv("HOPLITE_INDEX_DIMENSION", "4")
	t.Setenv("HOPLITE_EMBEDDING_DIMENSIONS", "4")
	t.Setenv("HOPLITE_CONSENSUS_SAMPLE_COUNT", "5")
	t.Setenv("HOPLITE_LOG_OUTPUT_PATHS", "stdout, /var/log/hoplite.log")
	t.Setenv("HOPLITE_LLM_TIMEOUT", "90s")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Index.Dimension)
	assert.Equal(t, 5, cfg.Consensus.SampleCount)
	assert.Equal(t, []string{"stdout", "/var/log/hoplite.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoplite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o644))
	t.Setenv("HOPLITE_SERVER_ADDR", ":7000")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestValidateRejectsDimensionMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Dimension = 768
	cfg.Embedding.Dimensions = 1536

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must match index dimension")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Planner.MaxHops = 0
	cfg.Verify.SimilarityThreshold = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_hops")
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestCustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Server.Addr == ":8080" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}
