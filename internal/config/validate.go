package config

import (
	"fmt"
	"regexp"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var holidayPattern = regexp.MustCompile(`^\d{2}-\d{2}$`)

// Validate checks the configuration for errors. Missing source credentials
// are not errors: an unconfigured source simply contributes nothing at
// search time.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.LLM.Provider != "gemini" && cfg.LLM.Provider != "openai" {
		errs = append(errs, ValidationError{"llm.provider", "must be 'gemini' or 'openai'"})
	}

	for i, t := range cfg.Backlog.Tenants {
		prefix := fmt.Sprintf("backlog.tenants[%d]", i)
		if t.SpaceID == "" {
			errs = append(errs, ValidationError{prefix + ".space_id", "required when api key is set"})
		}
		if t.APIKey == "" {
			errs = append(errs, ValidationError{prefix + ".api_key", "required when space id is set"})
		}
	}

	for i, h := range cfg.Notify.Holidays {
		if !holidayPattern.MatchString(h) {
			errs = append(errs, ValidationError{
				fmt.Sprintf("notify.holidays[%d]", i),
				fmt.Sprintf("%q must be in MM-DD form", h),
			})
		}
	}

	return errs
}
