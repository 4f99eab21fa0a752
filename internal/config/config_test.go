package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

// isolate points the default config file at an empty directory so a real
// ~/.config/devterm/devterm.yaml never leaks into tests.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("DEVTERM_CONFIG", "")
	os.Unsetenv("DEVTERM_CONFIG")
	return home
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "color", cfg.Theme)
	assert.Equal(t, filepath.Join(home, "Projects"), cfg.Workspace)
	confDir, err := os.UserConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(confDir, "devterm", "devterm.db"), cfg.DBPath)
	assert.Equal(t, 1<<20, cfg.OutputLimit)
	assert.Equal(t, 2*time.Minute, cfg.DefaultTimeout)
	assert.Equal(t, "go", cfg.DefaultKind)
	assert.Equal(t, "git", cfg.GitBin)
	assert.Equal(t, "python3", cfg.PythonBin)
	assert.Equal(t, 1, cfg.VCSNetworkRetries)
	assert.Equal(t, "origin", cfg.DefaultRemote)
	assert.Equal(t, "./cmd/devterm", cfg.SelfUpdate.Package)
	assert.Equal(t, []string{"version"}, cfg.SelfUpdate.VerifyArgs)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("DEVTERM_ENVIRONMENT", "production")
	t.Setenv("DEVTERM_LOG_LEVEL", "debug")
	t.Setenv("DEVTERM_BUILD_TIMEOUT", "90s")
	t.Setenv("DEVTERM_VCS_NETWORK_RETRIES", "3")
	t.Setenv("DEVTERM_SELF_UPDATE_SOURCE_DIR", "/src/devterm")
	t.Setenv("DEVTERM_SELF_UPDATE_VERIFY_ARGS", "version,--short")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.BuildTimeout)
	assert.Equal(t, 3, cfg.VCSNetworkRetries)
	assert.Equal(t, "/src/devterm", cfg.SelfUpdate.SourceDir)
	assert.Equal(t, []string{"version", "--short"}, cfg.SelfUpdate.VerifyArgs)
}

func TestLoad_File(t *testing.T) {
	home := isolate(t)
	t.Setenv("SRC_ROOT", "/opt/src")
	path := filepath.Join(t.TempDir(), "devterm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace: ~/code
log_level: warn
build_timeout: 5m
default_kind: cargo
self_update:
  source_dir: ${SRC_ROOT}/devterm
  skip_verify: true
`), 0o644))
	t.Setenv("DEVTERM_CONFIG", path)
	t.Setenv("DEVTERM_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(home, "code"), cfg.Workspace)
	assert.Equal(t, "error", cfg.LogLevel, "environment wins over the file")
	assert.Equal(t, 5*time.Minute, cfg.BuildTimeout)
	assert.Equal(t, "cargo", cfg.DefaultKind)
	assert.Equal(t, "/opt/src/devterm", cfg.SelfUpdate.SourceDir)
	assert.True(t, cfg.SelfUpdate.SkipVerify)
	assert.Equal(t, 10*time.Minute, cfg.TestTimeout, "unset keys keep defaults")
}

func TestLoad_RelativeWorkspaceIsAbsolute(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DEVTERM_WORKSPACE", "ws")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ws"), cfg.Workspace)
}

func TestLoad_DefaultFile(t *testing.T) {
	isolate(t)
	dir := filepath.Dir(DefaultConfigFile())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devterm.yaml"), []byte("theme: plain\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "plain", cfg.Theme)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	t.Run("missing explicit file", func(t *testing.T) {
		t.Setenv("DEVTERM_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("workspace: [unclosed\n"), 0o644))
		t.Setenv("DEVTERM_CONFIG", path)
		_, err := Load()
		assert.ErrorContains(t, err, "parse")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("DEVTERM_RUN_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		yaml string
	}{
		{name: "log level", yaml: "log_level: loud\n"},
		{name: "kind", yaml: "default_kind: maven\n"},
		{name: "output limit", yaml: "output_limit: -1\n"},
		{name: "retries", yaml: "vcs_network_retries: -2\n"},
		{name: "theme", yaml: "theme: neon\n"},
		{name: "timeout", yaml: "test_timeout: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			assert.ErrorIs(t, err, perrors.ErrInvalidInput)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DT_A", "alpha")
	assert.Equal(t, "alpha/alpha/", expandEnvVars("${DT_A}/$DT_A/${DT_MISSING}"))
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.NoError(t, os.Chdir(abs))
	t.Setenv("PWD", abs)
	t.Cleanup(func() { _ = os.Chdir(old) })
}
