package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("WINEPREFIX", filepath.Join(root, "prefix"))
	t.Setenv("XDG_RUNTIME_DIR", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("MENUBUILDER_CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("MENUBUILDER_BACKEND", "")
	t.Setenv("MENUBUILDER_LOG_PATH", filepath.Join(root, "menubuilder.log"))

	config := filepath.Join(root, "menubuilder.toml")
	content := "backend = \"none\"\nstate_file = \"" + filepath.ToSlash(filepath.Join(root, "state.toml")) + "\"\n"
	require.NoError(t, os.WriteFile(config, []byte(content), 0644))
	return config
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "menubuilder "+version)
	assert.Contains(t, out, "Built: ")
}

func TestArgumentValidation(t *testing.T) {
	config := setupEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no shortcut", []string{"--config", config}},
		{"thumbnail needs two", []string{"--config", config, "-t", "a.lnk"}},
		{"cleanup takes none", []string{"--config", config, "-r", "extra"}},
		{"unknown flag", []string{"--config", config, "--bogus"}},
		{"exclusive modes", []string{"--config", config, "-a", "-r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestNoneBackendModes(t *testing.T) {
	config := setupEnv(t)

	_, err := execute(t, "--config", config, "-r")
	require.NoError(t, err)

	_, err = execute(t, "--config", config, "-a")
	require.NoError(t, err)
}

func TestMissingConfigFails(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "-r")
	assert.Error(t, err)
}

func TestUnknownBackendFails(t *testing.T) {
	config := setupEnv(t)
	_, err := execute(t, "--config", config, "--backend", "amiga", "-r")
	assert.Error(t, err)
}
