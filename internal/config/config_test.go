package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LINKS", "")
	t.Setenv("FRIENDS", "")
	t.Setenv("IMG", "")
	t.Setenv("PORT", "")
	t.Setenv("SECURE_COOKIE", "")
	t.Setenv("TRUST_PROXY_HEADER", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 8, cfg.DisplayOffsetHours)
	assert.Equal(t, []string{defaultImage}, cfg.Images)
	assert.Empty(t, cfg.Catalog.Links)
	assert.Empty(t, cfg.Catalog.Friends)
	assert.True(t, cfg.SecureCookie)
	assert.False(t, cfg.TrustProxyHeader)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("IMG", "https://a.example/1.jpg, ,https://a.example/2.jpg")
	t.Setenv("LINKS", `[{"id":"a","name":"A","url":"https://a.example","backup_url":"https://b.example"}]`)
	t.Setenv("FRIENDS", `not json`)
	t.Setenv("DISPLAY_OFFSET_HOURS", "0")
	t.Setenv("LOGIN_RATE_RPS", "1.5")
	t.Setenv("SECURE_COOKIE", "false")
	t.Setenv("TRUST_PROXY_HEADER", "yes-please")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "s3cret", cfg.AdminPassword)
	assert.Equal(t, []string{"https://a.example/1.jpg", "https://a.example/2.jpg"}, cfg.Images)
	require.Len(t, cfg.Catalog.Links, 1)
	assert.Equal(t, "https://b.example", cfg.Catalog.Links[0].BackupURL)
	assert.Empty(t, cfg.Catalog.Friends)
	assert.Equal(t, 0, cfg.DisplayOffsetHours)
	assert.Equal(t, 1.5, cfg.LoginRateRPS)
	assert.False(t, cfg.SecureCookie)
	assert.False(t, cfg.TrustProxyHeader, "unparsable bools keep the default")
}

func TestLegacyAdminKey(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("admin", "legacy")

	assert.Equal(t, "legacy", Load().AdminPassword)
}
