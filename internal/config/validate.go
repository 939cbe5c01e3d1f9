package config

import (
	"fmt"

	"github.com/cims-otp/internal/pkg/validate"
)

// Validate checks the loaded configuration for values the process cannot start with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// TwilioConfigured reports whether all Twilio credentials are present.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioSID != "" && c.TwilioToken != "" && c.TwilioFrom != ""
}
