package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Zones.MaxConcurrentTasks)
	assert.True(t, cfg.Zones.AutoDiscovery)
	assert.Equal(t, 5*time.Minute, cfg.Zones.DiscoveryInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.HostMonitoring.Retention.Tasks)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoneweaverd.yaml")
	contents := `
zones:
  max_concurrent_tasks: 2
  auto_discovery: false
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Zones.MaxConcurrentTasks)
	assert.False(t, cfg.Zones.AutoDiscovery)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Fields the file didn't mention keep their defaults.
	assert.Equal(t, 100, cfg.Zones.DefaultPaginationLimit)
	assert.True(t, cfg.Logging.JSONOutput)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoneweaverd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zones: [this is not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
