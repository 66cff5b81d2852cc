package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
quiz:
  fallback_categories: [general, science]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"general", "science"}, cfg.Quiz.FallbackCategories)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, 200, cfg.Questions.PerCategoryCap)
	assert.Equal(t, "30s", cfg.Quiz.ResumeGrace)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad duration":   "questions:\n  fetch_timeout: soon\n",
		"bad log level":  "server:\n  log_level: loud\n",
		"bad redis db":   "redis:\n  db: 99\n",
		"bad retries":    "ledger:\n  max_retries: -1\n",
		"empty category": "quiz:\n  fallback_categories: [\"\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, Duration("3s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("nope", time.Minute))
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
