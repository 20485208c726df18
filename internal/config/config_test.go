package config

import (
	"os"
	"path/filepath"
	"strings"
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

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetServerAddress())
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 6, cfg.Join.PasscodeLength)
	assert.Equal(t, 15*time.Second, cfg.JoinTimeout())
	assert.Equal(t, 5, cfg.Join.AttemptsPerMinute)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 8000, cfg.FakeAPI.Port)
	assert.Zero(t, cfg.API.BreakerFailures, "breaker is opt-in")
	assert.Equal(t, 30*time.Second, cfg.BreakerCooldown())
}

func TestLoadFileWithFaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
api:
  base_url: https://clubs.example.com/
join:
  passcode_length: 4
  timeout_seconds: 5
create_club_url: https://clubs.example.com/create
faults:
  - name: slow-join
    method: POST
    path: /clubs/join
    latency: 250ms
    blast_radius: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://clubs.example.com", cfg.API.BaseURL)
	assert.Equal(t, 4, cfg.Join.PasscodeLength)
	assert.Equal(t, 5*time.Second, cfg.JoinTimeout())
	assert.Equal(t, "https://clubs.example.com/create", cfg.CreateClubURL)
	require.Len(t, cfg.Faults, 1)
	assert.Equal(t, 250*time.Millisecond, cfg.Faults[0].Latency)
	assert.Equal(t, 0.5, cfg.Faults[0].BlastRadius)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	key := strings.Repeat("ab", 32)
	t.Setenv("PORTAL_PORT", "7070")
	t.Setenv("CLUB_API_URL", "http://api.internal:8000")
	t.Setenv("PASSCODE_LENGTH", "4")
	t.Setenv("CSRF_KEY", key)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "http://api.internal:8000", cfg.API.BaseURL)
	assert.Equal(t, 4, cfg.Join.PasscodeLength)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)

	b, err := cfg.CSRFKeyBytes()
	require.NoError(t, err)
	assert.Len(t, b, 32)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"passcode length", "join:\n  passcode_length: 5\n"},
		{"api url", "api:\n  base_url: not-a-url\n"},
		{"port", "server:\n  port: 70000\n"},
		{"csrf key", "session:\n  csrf_key: zz\n"},
		{"short csrf key", "session:\n  csrf_key: abcd\n"},
		{"log format", "log:\n  format: xml\n"},
		{"tracing endpoint", "tracing:\n  enabled: true\n"},
		{"fault", "faults:\n  - name: bad\n    status: 42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), cfg.API.BreakerFailures)
	assert.Empty(t, cfg.Faults)
}
