package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := InitConfig()
		require.NoError(t, err)

		assert.Equal(t, 168*time.Hour, cfg.JWT.SessionTTL)
		assert.Equal(t, time.Hour, cfg.JWT.ResetTTL)
		assert.Equal(t, 10, cfg.Auth.BcryptCost)
		assert.Equal(t, "8000", cfg.Server.HTTPPort)
		assert.True(t, cfg.IsDevelopment())
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		secret := strings.Repeat("k", 48)
		t.Setenv("JWT_SECRET", secret)
		t.Setenv("JWT_EXPIRES_IN", "24h")
		t.Setenv("APP_ENV", "production")

		cfg, err := InitConfig()
		require.NoError(t, err)

		assert.Equal(t, secret, cfg.JWT.SecretKey)
		assert.Equal(t, 24*time.Hour, cfg.JWT.SessionTTL)
		assert.False(t, cfg.IsDevelopment())
	})

	t.Run("ProductionWithoutSecret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")

		_, err := InitConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secretKey")
	})

	t.Run("DaySuffix", func(t *testing.T) {
		t.Setenv("JWT_EXPIRES_IN", "7d")

		cfg, err := InitConfig()
		require.NoError(t, err)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.SessionTTL)
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "168h", want: 168 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "xd", wantErr: true},
		{in: "7w", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{}
	valid.JWT = JWTConfig{SecretKey: "s", SessionTTL: time.Hour, ResetTTL: time.Hour}
	assert.NoError(t, valid.Validate())

	noSecret := valid
	noSecret.JWT.SecretKey = "  "
	err := noSecret.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secretKey")

	badTTL := valid
	badTTL.JWT.SessionTTL = 0
	badTTL.JWT.ResetTTL = -time.Second
	err = badTTL.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.sessionTTL")
	assert.Contains(t, err.Error(), "jwt.resetTTL")

	production := valid
	production.Mode = "production"
	production.JWT.SecretKey = devSecretKey
	err = production.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")

	production.JWT.SecretKey = "too-short"
	err = production.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")

	production.JWT.SecretKey = strings.Repeat("s", 32)
	assert.NoError(t, production.Validate())
}
