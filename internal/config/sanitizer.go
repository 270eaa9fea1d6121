package config

import "encoding/json"

// Sanitizer redacts secret fields before a Config is logged or exported.
type Sanitizer interface {
	Sanitize(cfg *Config) *Config
}

// DefaultSanitizer implements Sanitizer by deep-copying the config and
// overwriting known secret fields.
type DefaultSanitizer struct {
	redactionValue string
}

// NewSanitizer creates a DefaultSanitizer using "***REDACTED***" as the
// replacement value.
func NewSanitizer() Sanitizer {
	return &DefaultSanitizer{redactionValue: "***REDACTED***"}
}

// Sanitize returns a copy of cfg with secret fields redacted. The original
// is never mutated.
func (s *DefaultSanitizer) Sanitize(cfg *Config) *Config {
	sanitized := s.deepCopy(cfg)

	sanitized.Database.Password = s.redactionValue
	sanitized.Redis.Password = s.redactionValue

	return sanitized
}

func (s *DefaultSanitizer) deepCopy(cfg *Config) *Config {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}

	var copied Config
	if err := json.Unmarshal(raw, &copied); err != nil {
		return cfg
	}

	return &copied
}
