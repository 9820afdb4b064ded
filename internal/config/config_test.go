package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QVAR_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8040, cfg.Port)
	assert.Equal(t, "statevector", cfg.DefaultBackend)
	assert.Equal(t, 0, cfg.DefaultShots)
	assert.Equal(t, 26, cfg.MaxQubits)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 30*24*time.Hour, cfg.RunTTL)
	assert.Contains(t, cfg.ArchiveDir, cfg.DataDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QVAR_DATA_DIR", t.TempDir())
	t.Setenv("QVAR_PORT", "9000")
	t.Setenv("QVAR_WORKERS", "8")
	t.Setenv("QVAR_SHOTS", "4096")
	t.Setenv("QVAR_RUN_TTL", "48h")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 4096, cfg.DefaultShots)
	assert.Equal(t, 48*time.Hour, cfg.RunTTL)
	assert.True(t, cfg.DevMode)
}

func TestValidate(t *testing.T) {
	base := Config{Port: 8040, MaxQubits: 26, Workers: 2}
	require.NoError(t, base.Validate())

	bad := base
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxQubits = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.DefaultShots = -1
	assert.Error(t, bad.Validate())

	bad = base
	bad.Workers = 0
	assert.Error(t, bad.Validate())
}
