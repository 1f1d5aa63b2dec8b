package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode decodes the provider-specific options into out, a pointer to a
// struct tagged with `mapstructure`. Unknown keys are rejected.
func (p ProviderConfig) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(p.Options); err != nil {
		return &ConfigError{Field: "provider", Err: fmt.Errorf("failed to decode %s options: %w", p.Type, err)}
	}
	return nil
}
