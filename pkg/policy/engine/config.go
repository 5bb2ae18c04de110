package engine

import (
	"fmt"
	"time"
)

// Config contains engine configuration.
type Config struct {
	// ValidatorTimeout bounds each compliance validator call. A
	// timeout is treated as validator unavailability, degrading that
	// standard's contribution; it never fails the evaluation.
	// Default: 5 seconds
	ValidatorTimeout time.Duration

	// MaxPolicies caps the size of a resolved policy set.
	// Default: 100
	MaxPolicies int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		ValidatorTimeout: 5 * time.Second,
		MaxPolicies:      100,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ValidatorTimeout <= 0 {
		return fmt.Errorf("validator timeout must be positive, got %v", c.ValidatorTimeout)
	}
	if c.MaxPolicies <= 0 {
		return fmt.Errorf("max policies must be positive, got %d", c.MaxPolicies)
	}
	return nil
}
