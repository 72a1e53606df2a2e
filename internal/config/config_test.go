package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "factlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10000, cfg.Engine.MaxRoundsPerStratum)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "unbounded rounds", modify: func(c *Config) { c.Engine.MaxRoundsPerStratum = 0 }},
		{
			name:    "negative rounds",
			modify:  func(c *Config) { c.Engine.MaxRoundsPerStratum = -1 },
			wantErr: "max_rounds_per_stratum",
		},
		{
			name:    "bad level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "bad format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
rules: rules/triage.dl
schema: /etc/factlog/vocab.cue
engine:
  max_rounds_per_stratum: 50
log:
  level: debug
journal:
  path: data/journal.db
metrics:
  enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rules", "triage.dl"), cfg.Rules)
	assert.Equal(t, "/etc/factlog/vocab.cue", cfg.Schema)
	assert.Equal(t, filepath.Join(dir, "data", "journal.db"), cfg.Journal.Path)
	assert.Equal(t, 50, cfg.Engine.MaxRoundsPerStratum)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format, "unset fields keep defaults")
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "engine:\n  max_rounds: 5\n")
		_, err := LoadFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_rounds")
	})
	t.Run("empty file", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "")
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})
}

func TestLoad(t *testing.T) {
	t.Run("explicit path validates", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "log:\n  format: xml\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
	t.Run("no file falls back to defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})
	t.Run("default file in working directory", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "rules: triage.dl\n")
		t.Chdir(dir)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "triage.dl", cfg.Rules)
	})
}

func TestNewLogger(t *testing.T) {
	l, err := LogConfig{Level: "error", Format: "json"}.NewLogger(false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	l, err = LogConfig{Level: "error", Format: "console"}.NewLogger(true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = LogConfig{Level: "nope"}.NewLogger(false)
	assert.Error(t, err)
}
