package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Scanner.Cooldown)
	assert.Equal(t, 10, cfg.Scanner.HistorySize)
	assert.Equal(t, 33*time.Millisecond, cfg.Scanner.TickInterval)
	assert.Equal(t, "", cfg.Storage.PostgresURL)
	assert.Equal(t, "qr_scanner_data", filepath.Base(cfg.Storage.ExportDir))
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
scanner:
  cooldown: 1500ms
  history_size: 4
storage:
  export_dir: /tmp/exports
log:
  level: debug
`)
	t.Setenv("LABELSCAN_HISTORY_SIZE", "6")
	t.Setenv("LABELSCAN_DATABASE_URL", "postgres://scan@localhost/labels")

	cfg, err := Load(path, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scanner.Cooldown)
	assert.Equal(t, 6, cfg.Scanner.HistorySize, "env wins over file")
	assert.Equal(t, 33*time.Millisecond, cfg.Scanner.TickInterval, "unset keys keep defaults")
	assert.Equal(t, "/tmp/exports", cfg.Storage.ExportDir)
	assert.Equal(t, "postgres://scan@localhost/labels", cfg.Storage.PostgresURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidDurationKeepsPrevious(t *testing.T) {
	t.Setenv("LABELSCAN_COOLDOWN", "soon")

	cfg, err := Load("", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Scanner.Cooldown)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		_, err := Load(writeConfig(t, "scanner: [unclosed"), zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("Non-positive history", func(t *testing.T) {
		_, err := Load(writeConfig(t, "scanner:\n  history_size: 0\n"), zerolog.Nop())
		assert.ErrorContains(t, err, "history_size")
	})
}
