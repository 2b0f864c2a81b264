package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, 4000, cfg.Server.Port)
	require.Equal(t, "JitRealm", cfg.Server.MudName)
}

func TestLoadOverlaysTOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 5000
mud_name = "TestRealm"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Server.Port)
	require.Equal(t, "TestRealm", cfg.Server.MudName)
	require.Equal(t, 100, cfg.Server.MaxConnections) // untouched default
}

func TestEnvOverlayOverridesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 5000
`), 0o644))

	t.Setenv("JITREALM_SERVER_PORT", "6000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 6000, cfg.Server.Port)
}
