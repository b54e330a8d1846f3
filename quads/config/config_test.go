package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quadmill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: "0.0.0.0:9000"
journal: /var/lib/quadmill
verbose: true
max_steps: 10000
`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "/var/lib/quadmill", cfg.Journal)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 10000, cfg.MaxSteps)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "journal: ./data\n"))
	require.NoError(t, err)
	assert.Equal(t, Default().Listen, cfg.Listen)
	assert.Equal(t, "./data", cfg.Journal)
	assert.False(t, cfg.Verbose)
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "journel: ./data\n"))
	assert.Error(t, err, "typoed keys must not pass silently")
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "max_steps: -5\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `listen: ""`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
