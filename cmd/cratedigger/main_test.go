package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	configPath string
	dbPath     string
	dir        string
}

func setupCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	for _, key := range []string{"YOUTUBE_API_KEY", "YOUTUBE_ACCESS_TOKEN", "CRATEDIGGER_DB", "CRATEDIGGER_ADDR", "CRATEDIGGER_LOG_LEVEL", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := cliEnv{
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "data", "cratedigger.db"),
		dir:        dir,
	}
	contents := "[paths]\ndatabase = \"" + filepath.ToSlash(env.dbPath) + "\"\n\n[logging]\nlevel = \"error\"\n"
	require.NoError(t, os.WriteFile(env.configPath, []byte(contents), 0o644))
	return env
}

func runCLI(t *testing.T, env cliEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
