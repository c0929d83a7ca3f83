package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SITEWATCH_AUTH_JWTSECRET", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/sitewatch.db", cfg.Database.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, MinBcryptCost, cfg.Auth.BcryptCost)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "tick-exports", cfg.Storage.KeyPrefix)
	assert.Error(t, cfg.Validate(), "missing secret must fail validation")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SITEWATCH_AUTH_JWTSECRET", "s3cret")
	t.Setenv("SITEWATCH_AUTH_TOKENTTL", "1h")
	t.Setenv("SITEWATCH_AUTH_BCRYPTCOST", "13")
	t.Setenv("SITEWATCH_DATABASE_PATH", "/tmp/x.db")
	t.Setenv("SITEWATCH_STORAGE_BUCKET", "exports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 13, cfg.Auth.BcryptCost)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "exports", cfg.Storage.Bucket)
	assert.NoError(t, cfg.Validate())

	ac := cfg.AuthConfig()
	assert.Equal(t, []byte("s3cret"), ac.Secret)
	assert.Equal(t, time.Hour, ac.TTL)
}

func TestLoad_PlainJWTSecret(t *testing.T) {
	t.Setenv("SITEWATCH_AUTH_JWTSECRET", "")
	t.Setenv("JWT_SECRET", "legacy")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Auth.JWTSecret = "k"
		c.Auth.TokenTTL = time.Hour
		c.Auth.BcryptCost = 12
		c.Database.Path = "x.db"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "  " }, "jwt secret"},
		{"weak cost", func(c *Config) { c.Auth.BcryptCost = 10 }, "bcrypt cost"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "token ttl"},
		{"no db", func(c *Config) { c.Database.Path = "" }, "database path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
