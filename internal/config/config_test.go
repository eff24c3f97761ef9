package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stallpos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
device_id: terminal-3
api_base_url: https://pos.example.com/api
db_path: /var/lib/stallpos/pos.db
printer: escpos
backoff:
  base_ms: 500
  max_ms: 10000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "terminal-3", cfg.DeviceID)
	assert.Equal(t, "https://pos.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "escpos", cfg.Printer)
	assert.Equal(t, 500, cfg.Backoff.BaseMS)
	assert.Equal(t, 10000, cfg.Backoff.MaxMS)
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, "device_id: terminal-9\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "terminal-9", cfg.DeviceID)
	assert.Equal(t, Default().APIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, Default().Backoff, cfg.Backoff)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "device_id: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty device id", func(c *Config) { c.DeviceID = "" }},
		{"empty api base url", func(c *Config) { c.APIBaseURL = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"unknown printer", func(c *Config) { c.Printer = "dot-matrix" }},
		{"zero base delay", func(c *Config) { c.Backoff.BaseMS = 0 }},
		{"cap below base", func(c *Config) { c.Backoff.MaxMS = c.Backoff.BaseMS - 1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestBackoffDelays(t *testing.T) {
	b := Backoff{BaseMS: 1000, MaxMS: 30000}
	assert.Equal(t, "1s", b.BaseDelay().String())
	assert.Equal(t, "30s", b.MaxDelay().String())
}
