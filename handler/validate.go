package handler

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/NimbusAI/avatarchat/config"
)

// ValidationError represents a single schema validation error with
// field-level detail.
type ValidationError struct {
	Field       string
	Description string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidateConfig checks a raw handler configuration against the JSON schema
// the handler declares in its Info. A nil schema accepts anything. The
// returned slice is nil when the configuration is valid.
func ValidateConfig(info Info, cfg config.HandlerConfig) ([]ValidationError, error) {
	if info.ConfigSchema == nil {
		return nil, nil
	}
	doc := map[string]interface{}(cfg)
	if doc == nil {
		doc = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(info.ConfigSchema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate %s config: %w", info.Name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, ValidationError{Field: e.Field(), Description: e.Description()})
	}
	return errs, nil
}
