package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3050*time.Millisecond, cfg.Endpoint.Timeout)
	assert.True(t, cfg.Token.ValidateLength)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ExpireAfter)
	assert.Equal(t, "error", cfg.Logger.Level)
}

func TestLoadConfigTokenEnvOrder(t *testing.T) {
	// Первая непустая переменная из списка выигрывает
	t.Setenv("OIDC", "second-choice")
	t.Setenv("ACCESS_TOKEN", "first-choice")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "first-choice", cfg.Token.Value)
}

func TestLoadConfigAgentSocketFromEnv(t *testing.T) {
	t.Setenv("OIDC_SOCK", "/tmp/oidc-agent.sock")
	t.Setenv("OIDC_AGENT_ACCOUNT", "egi")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/oidc-agent.sock", cfg.Agent.Socket)
	assert.Equal(t, "egi", cfg.Token.Account)
}
