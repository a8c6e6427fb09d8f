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
	for _, k := range []string{
		"CONFIG_FILE", "STORAGE_DRIVER", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"JWT_SECRET", "SERVER_PORT", "NOSHOW_GRACE", "EXTENSION_PRICING", "CAFE_TIMEZONE",
		"OVERSTAY_MULTIPLIER", "RATE_LIMIT_RPS",
	} {
		t.Setenv(k, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.JWTTTL)
	assert.Equal(t, 15*time.Minute, cfg.Automation.NoShowGrace)
	assert.Equal(t, 4*time.Hour, cfg.Automation.OverstayMax)
	assert.Equal(t, 1.5, cfg.Billing.OverstayMultiplier)
	assert.Equal(t, 50.0, cfg.Billing.NoShowPenalty)
	assert.Equal(t, "base", cfg.Billing.ExtensionPricing)
	assert.Equal(t, "Asia/Kolkata", cfg.Billing.Timezone)
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("NOSHOW_GRACE", "10m")
	t.Setenv("EXTENSION_PRICING", "dynamic")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Automation.NoShowGrace)
	assert.Equal(t, "dynamic", cfg.Billing.ExtensionPricing)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
}

func TestNew_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
storage:
  driver: memory
auth:
  jwt_secret: from-file
automation:
  overstay_max: 3h
billing:
  noshow_penalty: 75
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7171")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 3*time.Hour, cfg.Automation.OverstayMax)
	assert.Equal(t, 75.0, cfg.Billing.NoShowPenalty)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres driver without credentials",
			env:  map[string]string{"JWT_SECRET": "s"},
		},
		{
			name: "missing jwt secret",
			env:  map[string]string{"STORAGE_DRIVER": "memory"},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"STORAGE_DRIVER": "mongo", "JWT_SECRET": "s"},
		},
		{
			name: "bad port",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "JWT_SECRET": "s", "SERVER_PORT": "http"},
		},
		{
			name: "bad extension policy",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "JWT_SECRET": "s", "EXTENSION_PRICING": "surge"},
		},
		{
			name: "bad timezone",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "JWT_SECRET": "s", "CAFE_TIMEZONE": "Mars/Olympus"},
		},
		{
			name: "non-positive overstay multiplier",
			env:  map[string]string{"STORAGE_DRIVER": "memory", "JWT_SECRET": "s", "OVERSTAY_MULTIPLIER": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{User: "cafe", Password: "p@ss", Name: "gamecafe", Host: "db", Port: 5432, SSLMode: "disable"}
	assert.Equal(t, "postgres://cafe:p%40ss@db:5432/gamecafe?sslmode=disable", p.DSN())
}
