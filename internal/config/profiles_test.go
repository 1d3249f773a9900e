// ABOUTME: Tests for TOML gateway profiles and their overlay onto a config.
// ABOUTME: Unknown profile names must fail loudly.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const sampleProfiles = `
[profiles.local]
url = "ws://localhost:18789/gateway"

[profiles.prod]
url = "wss://gateway.example.com/gateway"
token = "prod-token"
`

func TestLoadProfiles(t *testing.T) {
	p, err := LoadProfiles(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	local, ok := p.Get("local")
	require.True(t, ok)
	assert.Equal(t, "ws://localhost:18789/gateway", local.URL)
	assert.Empty(t, local.Token)

	prod, ok := p.Get("prod")
	require.True(t, ok)
	assert.Equal(t, "wss://gateway.example.com/gateway", prod.URL)
	assert.Equal(t, "prod-token", prod.Token)

	_, ok = p.Get("staging")
	assert.False(t, ok)
}

func TestLoadProfiles_BadTOML(t *testing.T) {
	_, err := LoadProfiles(writeProfiles(t, "[profiles.broken\nurl ="))
	assert.Error(t, err)
}

func TestApply_OverlaysURLAndToken(t *testing.T) {
	p, err := LoadProfiles(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	cfg := Default()
	cfg.Gateway.Token = "existing-token"

	require.NoError(t, p.Apply(cfg, "prod"))
	assert.Equal(t, "wss://gateway.example.com/gateway", cfg.Gateway.URL)
	assert.Equal(t, "prod-token", cfg.Gateway.Token)
}

func TestApply_KeepsTokenWhenProfileHasNone(t *testing.T) {
	p, err := LoadProfiles(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	cfg := Default()
	cfg.Gateway.Token = "existing-token"

	require.NoError(t, p.Apply(cfg, "local"))
	assert.Equal(t, "ws://localhost:18789/gateway", cfg.Gateway.URL)
	assert.Equal(t, "existing-token", cfg.Gateway.Token)
}

func TestApply_UnknownProfile(t *testing.T) {
	p, err := LoadProfiles(writeProfiles(t, sampleProfiles))
	require.NoError(t, err)

	err = p.Apply(Default(), "stagin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "stagin"`)
}

func TestApply_RevalidatesAfterOverlay(t *testing.T) {
	p, err := LoadProfiles(writeProfiles(t, `
[profiles.bad]
url = "https://not-a-websocket.example.com"
`))
	require.NoError(t, err)

	err = p.Apply(Default(), "bad")
	assert.Error(t, err)
}
