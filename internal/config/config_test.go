package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Q-ITS-Mastery-Backend/internal/quantum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Port)
	assert.Equal(t, "tianyan_sw", cfg.TianYan.MachineName)
	assert.Equal(t, 36, cfg.MachineQubits())
	assert.False(t, cfg.Log.Debug())
	assert.Equal(t, 120, cfg.Session.IdleTimeoutMinutes)

	settings := cfg.EngineSettings()
	assert.Equal(t, 36, settings.Capacity)
	assert.Equal(t, 2048, settings.Shots)
	assert.Equal(t, 12, settings.AnglePrecision)
	assert.Equal(t, 60*time.Second, settings.BackendTimeout)
	assert.Equal(t, quantum.DefaultThresholds(), settings.Thresholds)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
log:
  level: debug
tianyan:
  machine_name: tianyan_swn
  shots: 1000
engine:
  time_thresholds:
    "1": 5
    "3": 20
`)
	t.Setenv("QITS_TIANYAN_SHOTS", "512")
	t.Setenv("QITS_TIANYAN_LOGIN_KEY", "secret")
	t.Setenv("QITS_DIFY_API_KEY", "app-xyz")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, cfg.Log.Debug())
	assert.Equal(t, 16, cfg.MachineQubits())
	assert.Equal(t, 512, cfg.TianYan.Shots)
	assert.Equal(t, "secret", cfg.TianYan.LoginKey)
	assert.Equal(t, "app-xyz", cfg.Dify.APIKey)

	th := cfg.EngineSettings().Thresholds
	assert.Equal(t, 5.0, th.For(1))
	assert.Equal(t, 20.0, th.For(3))
	assert.Equal(t, 30.0, th.For(2))

	opts := cfg.TianYanOptions()
	assert.Equal(t, "tianyan_swn", opts.MachineName)
	assert.Equal(t, 2*time.Second, opts.PollInterval)
	assert.Equal(t, 50*time.Second, opts.MaxWait)
}

func TestExplicitQubitsOverrideMachineTable(t *testing.T) {
	dir := writeConfig(t, `
tianyan:
  machine_name: custom
  machine_qubits: 8
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.EngineSettings().Capacity)
}

func TestUnknownMachineFallsBackTo16(t *testing.T) {
	dir := writeConfig(t, "tianyan:\n  machine_name: unknown\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MachineQubits())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero shots", "tianyan:\n  shots: 0\n"},
		{"precision too large", "tianyan:\n  angle_precision: 20\n"},
		{"non integer threshold key", "engine:\n  time_thresholds:\n    easy: 5\n"},
		{"negative threshold", "engine:\n  time_thresholds:\n    \"2\": -1\n"},
		{"broken yaml", "tianyan: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}
