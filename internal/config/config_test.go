package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "PORT", "JWT_SECRET", "CLAIM_SECRET", "ADMIN_SECRET", "DEV_MODE"} {
		t.Setenv(key, vars[key])
	}
}

func validEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://app:pw@localhost:5432/rewards",
		"JWT_SECRET":   "session-secret",
		"CLAIM_SECRET": "claim-secret",
		"ADMIN_SECRET": "admin-secret",
	}
}

func TestLoad_complete(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.DevMode)

	t.Setenv("PORT", "9999")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
}

func TestLoad_requiredVars(t *testing.T) {
	for _, key := range []string{"JWT_SECRET", "CLAIM_SECRET", "ADMIN_SECRET", "DATABASE_URL"} {
		t.Run(key, func(t *testing.T) {
			vars := validEnv()
			delete(vars, key)
			setEnv(t, vars)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_claimSecretMustDifferFromJWTSecret(t *testing.T) {
	vars := validEnv()
	vars["CLAIM_SECRET"] = vars["JWT_SECRET"]
	setEnv(t, vars)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLAIM_SECRET must differ from JWT_SECRET")
}

func TestLoad_devModeSkipsDatabaseURL(t *testing.T) {
	vars := validEnv()
	delete(vars, "DATABASE_URL")
	vars["DEV_MODE"] = "true"
	setEnv(t, vars)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
	assert.Empty(t, cfg.DatabaseURL)
}
