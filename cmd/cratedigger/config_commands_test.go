package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Config path: "+env.configPath)
	assert.Contains(t, out, "Video search credentials: no")
	assert.Contains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample configuration")
	_, err = os.Stat(target)
	require.NoError(t, err)

	_, _, err = runCLI(t, env, "config", "init", "--path", target)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = runCLI(t, env, "config", "init", "--path", target, "--overwrite")
	assert.NoError(t, err)
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLIEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("[queue]\nsize = -1\n"), 0o644))

	_, _, err := runCLI(t, env, "config", "validate")
	assert.ErrorContains(t, err, "load config")
}

func TestUnknownConfigKeysFailBeforeCommands(t *testing.T) {
	env := setupCLIEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("[paths]\nnot_a_key = 1\n"), 0o644))

	_, _, err := runCLI(t, env, "job", "list")
	assert.Error(t, err)
}
