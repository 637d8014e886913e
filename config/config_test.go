package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doubao.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// Tests in this file use t.Setenv and therefore cannot run in parallel.

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "https://api.doubao.com", cfg.BaseURL)
	assert.Zero(t, cfg.Timeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
base_url: https://ark.example.com
timeout: 30s
manifest_dir: ./nodes
parallel: 8
log_format: json
`)
	t.Setenv("DOUBAO_PARALLEL", "2")
	t.Setenv("DOUBAO_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://ark.example.com", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "./nodes", cfg.ManifestDir)
	assert.Equal(t, 2, cfg.Parallel)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:8188", cfg.Listen)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("DOUBAO_BASE_URL", "http://localhost:9000")
	t.Setenv("DOUBAO_TIMEOUT", "1m")
	t.Setenv("DOUBAO_LISTEN", ":9999")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.Equal(t, ":9999", cfg.Listen)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "timeout: [1, 2"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "parallel: 0"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "log_format: xml"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "log_level: loud"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("DOUBAO_TIMEOUT", "soon")
	_, err = Load("")
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "node", "DouBaoPrompt")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "DouBaoPrompt", entry["node"])

	buf.Reset()
	Default().Logger(&buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
