package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageInMemory, cfg.Storage.Kind)
	assert.Equal(t, RateLimitMemory, cfg.RateLimit.Kind)
	assert.False(t, cfg.Email.Enabled)

	opts, err := cfg.MultiEmail.ToOptions()
	require.NoError(t, err)
	assert.True(t, opts.Reconfirmable)
	assert.Equal(t, 72*time.Hour, opts.ConfirmWithin)
	assert.Equal(t, 6*time.Hour, opts.ResetPasswordWithin)
	require.NotNil(t, opts.AllowUnconfirmedAccessFor)
	assert.Equal(t, time.Duration(0), *opts.AllowUnconfirmedAccessFor)

	expiry, err := cfg.JWT.ParseSessionExpiry()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, expiry)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_KIND", "postgres")
	t.Setenv("MULTI_EMAIL_ALLOW_UNCONFIRMED_ACCESS_FOR", Unlimited)
	t.Setenv("MULTI_EMAIL_CONFIRM_WITHIN", "48h")
	t.Setenv("MULTI_EMAIL_ONLY_LOGIN_WITH_PRIMARY", "true")
	t.Setenv("IDM_PG_DATABASE", "multi")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage.Kind)
	assert.Contains(t, cfg.Database.ToDatabaseURL(), "/multi?")
	assert.Equal(t, "multi", cfg.Database.ToDbConfig().Database)

	opts, err := cfg.MultiEmail.ToOptions()
	require.NoError(t, err)
	assert.Nil(t, opts.AllowUnconfirmedAccessFor)
	assert.Equal(t, 48*time.Hour, opts.ConfirmWithin)
	assert.True(t, opts.OnlyLoginWithPrimaryEmail)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORAGE_KIND", "sqlite")
	t.Setenv("MULTI_EMAIL_RESET_PASSWORD_WITHIN", "soon")
	t.Setenv("RATE_LIMIT_KIND", "redis")
	t.Setenv("RATE_LIMIT_REQUESTS", "0")

	_, err := Load()
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"STORAGE_KIND", "MULTI_EMAIL_RESET_PASSWORD_WITHIN", "RATE_LIMIT_REQUESTS"}, fields)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT6H", 6 * time.Hour},
		{"P3D", 72 * time.Hour},
		{"PT0S", 0},
		{"90m", 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseDuration("later")
	assert.Error(t, err)
}

func TestValidationErrors_Error(t *testing.T) {
	single := ValidationErrors{{Field: "A", Message: "is required"}}
	assert.Equal(t, "A: is required", single.Error())

	multi := ValidationErrors{{Field: "A", Message: "x"}, {Field: "B", Message: "y"}}
	assert.Contains(t, multi.Error(), "\n  - B: y")
}
