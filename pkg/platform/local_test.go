package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoadReadsProcLoadavg(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loadavg"), []byte("0.42 0.50 0.55 1/200 1234\n"), 0o644))

	l := &Local{ProcPath: dir}
	load, err := l.GetLoad(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, load, 1e-9)
}

func TestGetTemperatureReadsThermalZone(t *testing.T) {
	dir := t.TempDir()
	zoneDir := filepath.Join(dir, "class", "thermal", "thermal_zone0")
	require.NoError(t, os.MkdirAll(zoneDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(zoneDir, "temp"), []byte("48500\n"), 0o644))

	l := &Local{SysPath: dir}
	temp, err := l.GetTemperature(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 48.5, temp, 1e-9)
}

func TestSetClockFreqReturnsNotSupported(t *testing.T) {
	l := NewLocal()
	err := l.SetClockFreq(context.Background(), nil, 1_000_000)
	assert.Error(t, err)
}
