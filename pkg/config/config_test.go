package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFillsDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtrm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("var_dir: /tmp/rtrm\npolicy: fifo\nforce_sync: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/rtrm", cfg.VarDir)
	assert.True(t, cfg.ForceSync)
	assert.Equal(t, Default().SettleMultiplier, cfg.SettleMultiplier, "an unset settle_multiplier must fall back to the default")
	assert.Equal(t, filepath.Join("/tmp/rtrm", "bbque_cmds"), cfg.FIFOPath())
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
