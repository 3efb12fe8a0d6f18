package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLIIn executes the CLI in a prepared working directory.
func runCLIIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)

	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigInitCmd_CreatesTemplate(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLIIn(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")

	data, err := os.ReadFile(filepath.Join(dir, ".trident.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "backends:")

	// The template must load and validate as written.
	out, err = runCLIIn(t, dir, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigInitCmd_ExistingFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".trident.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	out, err := runCLIIn(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigInitCmd_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".trident.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	_, err := runCLIIn(t, dir, "config", "init", "--force")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backends:")
}

func TestConfigValidateCmd_Defaults(t *testing.T) {
	out, err := runCLIIn(t, t.TempDir(), "config", "validate")
	require.NoError(t, err)

	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "graph")
	assert.Contains(t, out, "vector")
	assert.Contains(t, out, "keyword")
}

func TestConfigValidateCmd_BadWeights(t *testing.T) {
	dir := t.TempDir()
	cfgYAML := `
backends:
  graph:
    enabled: true
    weight: 0.5
  vector:
    enabled: true
    weight: 0.5
  keyword:
    enabled: true
    weight: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".trident.yaml"), []byte(cfgYAML), 0o644))

	out, err := runCLIIn(t, dir, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "Configuration invalid")
}

func TestConfigShowCmd_YAML(t *testing.T) {
	out, err := runCLIIn(t, t.TempDir(), "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "backends:")
	assert.Contains(t, out, "routing:")
	assert.Contains(t, out, "0.5")
}

func TestConfigShowCmd_JSON(t *testing.T) {
	out, err := runCLIIn(t, t.TempDir(), "config", "show", "--json")
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg, "backends")
	assert.Contains(t, cfg, "routing")
}

func TestConfigShowCmd_ReflectsFileOverride(t *testing.T) {
	dir := t.TempDir()
	cfgYAML := `
search:
  default_limit: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".trident.yaml"), []byte(cfgYAML), 0o644))

	out, err := runCLIIn(t, dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "25")
}
