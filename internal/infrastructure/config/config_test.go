package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessExpiry)
	assert.Equal(t, "sandbox", cfg.Mpesa.Environment)
	assert.Equal(t, int64(100), cfg.Mpesa.MinAmountCents)
	assert.Equal(t, 30*time.Second, cfg.Worker.ReconcileInterval)
	assert.Equal(t, 20, cfg.Worker.BatchSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEDSUPPLY_SERVER_PORT", "9090")
	t.Setenv("MEDSUPPLY_MPESA_ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Mpesa.Environment)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Mpesa.Environment = "staging"
	cfg.Mpesa.MaxAmountCents = cfg.Mpesa.MinAmountCents - 1

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "mpesa.environment")
	assert.Contains(t, err.Error(), "max_amount_cents")
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Auth.JWTSecret = "too-short"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	cfg.Auth.JWTSecret = strings.Repeat("a", 32)
	assert.NoError(t, cfg.Validate())
}

func TestMpesaBaseURL(t *testing.T) {
	c := MpesaConfig{Environment: "sandbox"}
	assert.Equal(t, "https://sandbox.safaricom.co.ke", c.BaseURL())

	c.Environment = "production"
	assert.Equal(t, "https://api.safaricom.co.ke", c.BaseURL())

	c.APIBaseURL = "http://127.0.0.1:9999"
	assert.Equal(t, "http://127.0.0.1:9999", c.BaseURL())
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "medsupply",
		Password: "secret",
		Database: "medsupply",
		SSLMode:  "require",
	}
	dsn := c.DatabaseDSN()
	assert.Contains(t, dsn, "db.internal")
	assert.Contains(t, dsn, "sslmode=require")
}
