package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8585", cfg.Port)
	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, 2*time.Minute, cfg.ModelTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ATOMIC_PORT", "9090")
	t.Setenv("ATOMIC_LLM_PROVIDER", ProviderOllama)
	t.Setenv("ATOMIC_MODEL_TIMEOUT_SECONDS", "30")
	t.Setenv("ATOMIC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atomic.yaml")
	yaml := "port: \"7070\"\nllm_model: gpt-4o-mini\nsurrealdb_namespace: staging\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("ATOMIC_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "staging", cfg.SurrealDBNamespace)
	// Untouched fields keep defaults.
	assert.Equal(t, "root", cfg.SurrealDBUser)
}

func TestLoadEnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atomic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\n"), 0644))
	t.Setenv("ATOMIC_CONFIG", path)
	t.Setenv("ATOMIC_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Port)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("ATOMIC_MODEL_TIMEOUT_SECONDS", "banana")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateServerRequiresJWTSecret(t *testing.T) {
	// The default config carries no secret; a server must refuse to start
	// rather than verify tokens signed with the empty key.
	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.JWTSecret)
	assert.ErrorContains(t, cfg.ValidateServer(), "jwt_secret")

	t.Setenv("ATOMIC_JWT_SECRET", "s3cret")
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateServer())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}
