package config

import (
	"fmt"
	"os"
	"strconv"
)

// TriggerAuthConfig holds configuration for the Bearer tokens that protect the HTTP triggers.
type TriggerAuthConfig struct {
	Secret          string
	ExpirationHours int
}

// NewTriggerAuthConfig creates the configuration from environment variables.
// It reads TRIGGER_SECRET (required) and TRIGGER_TOKEN_HOURS (default: 24).
func NewTriggerAuthConfig() (*TriggerAuthConfig, error) {
	secret := os.Getenv("TRIGGER_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("TRIGGER_SECRET is required but not set")
	}

	expirationStr := os.Getenv("TRIGGER_TOKEN_HOURS")
	if expirationStr == "" {
		expirationStr = "24"
	}

	expirationHours, err := strconv.Atoi(expirationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TRIGGER_TOKEN_HOURS: %v", err)
	}

	config := &TriggerAuthConfig{
		Secret:          secret,
		ExpirationHours: expirationHours,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *TriggerAuthConfig) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("TRIGGER_SECRET must be at least 16 characters")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("TRIGGER_TOKEN_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
