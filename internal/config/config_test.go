package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for name := range envAliases {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Conversation.DedupeWindow)
	assert.Equal(t, 3, cfg.Conversation.HistoryTurns)
	assert.Equal(t, 0.8, cfg.Classifier.Threshold)
	assert.Equal(t, ProviderCohere, cfg.Backends.Primary.Provider)
	assert.Equal(t, 12*time.Second, cfg.Backends.Local.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Escalation.Timeout)
	assert.False(t, cfg.Backends.Primary.Enabled())
	assert.False(t, cfg.Escalation.Enabled())
	assert.False(t, cfg.Ark.Enabled())
	assert.Equal(t, []string{"*"}, cfg.Server.Origins())
}

func TestLoadFileThenEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "agricare.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = "127.0.0.1:9000"
allowed_origins = "http://localhost:5173, https://agricare.example"

[conversation]
history_turns = 2

[backends.local]
model = "llama3"
`), 0o600))

	t.Setenv("COHERE_API_KEY", "alias-key")
	t.Setenv("CALLMEBOT_API_KEY", "cmb")
	t.Setenv("AGRICARE_BACKENDS__LOCAL__TIMEOUT", "3s")
	t.Setenv("AGRICARE_LOG__PRETTY", "true")
	t.Setenv("AGRICARE_CONVERSATION__HISTORY_TURNS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:5173", "https://agricare.example"}, cfg.Server.Origins())
	assert.Equal(t, 4, cfg.Conversation.HistoryTurns)
	assert.Equal(t, "alias-key", cfg.Backends.Primary.APIKey)
	assert.True(t, cfg.Backends.Primary.Enabled())
	assert.True(t, cfg.Backends.Local.Enabled())
	assert.Equal(t, 3*time.Second, cfg.Backends.Local.Timeout)
	assert.True(t, cfg.Log.Pretty)
	assert.True(t, cfg.Escalation.Enabled())
}

func TestPrefixedEnvironmentBeatsAlias(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("COHERE_API_KEY", "alias")
	t.Setenv("AGRICARE_BACKENDS__PRIMARY__API_KEY", "prefixed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Backends.Primary.APIKey)
}

func TestPortAlias(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("PORT", "3000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cases := map[string]string{
		"AGRICARE_CLASSIFIER__THRESHOLD":       "1.5",
		"AGRICARE_BACKENDS__LOCAL__PROVIDER":   "cohere",
		"AGRICARE_BACKENDS__PRIMARY__PROVIDER": "ark",
		"AGRICARE_CLASSIFIER__MODEL_ENABLED":   "true",
		"AGRICARE_SERVER__ADDR":                "bad addr",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestArkEnabled(t *testing.T) {
	assert.True(t, ArkConfig{APIKey: "k", Model: "m"}.Enabled())
	assert.True(t, ArkConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
	assert.False(t, ArkConfig{APIKey: "k"}.Enabled())
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (unavailable before Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
