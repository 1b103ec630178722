package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTriggerAuthConfig_DefaultValues(t *testing.T) {
	t.Setenv("TRIGGER_SECRET", "a-sufficiently-long-secret")
	t.Setenv("TRIGGER_TOKEN_HOURS", "")

	cfg, err := NewTriggerAuthConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "a-sufficiently-long-secret", cfg.Secret)
	assert.Equal(t, 24, cfg.ExpirationHours, "should use default expiration of 24 hours")
}

func TestNewTriggerAuthConfig_CustomExpiration(t *testing.T) {
	tests := []struct {
		name          string
		expiration    string
		expectedHours int
		wantErr       bool
	}{
		{name: "one hour", expiration: "1", expectedHours: 1},
		{name: "one week", expiration: "168", expectedHours: 168},
		{name: "zero", expiration: "0", wantErr: true},
		{name: "negative", expiration: "-5", wantErr: true},
		{name: "not a number", expiration: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRIGGER_SECRET", "a-sufficiently-long-secret")
			t.Setenv("TRIGGER_TOKEN_HOURS", tt.expiration)

			cfg, err := NewTriggerAuthConfig()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHours, cfg.ExpirationHours)
		})
	}
}

func TestNewTriggerAuthConfig_SecretRequired(t *testing.T) {
	t.Setenv("TRIGGER_SECRET", "")
	cfg, err := NewTriggerAuthConfig()
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "TRIGGER_SECRET is required")
}

func TestNewTriggerAuthConfig_ShortSecret(t *testing.T) {
	t.Setenv("TRIGGER_SECRET", "short")
	_, err := NewTriggerAuthConfig()
	assert.ErrorContains(t, err, "at least 16 characters")
}
