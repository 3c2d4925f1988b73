package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// configSchema validates the shape of the config JSON document before it is
// stored. Pattern compilability is checked separately in ValidateConfig.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "patterns": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": { "type": "string", "minLength": 1 }
      }
    },
    "table_start": { "type": "string" },
    "table_end": { "type": "string" },
    "ignore": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "table_columns": {
      "type": "object",
      "properties": {
        "line_pattern": { "type": "string" },
        "line_layout": { "enum": ["", "single_line", "two_line", "fixed_code"] }
      },
      "additionalProperties": false
    },
    "display_layout": { "enum": ["", "standard", "weight-based", "layout-B"] }
  },
  "additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString("template_config.schema.json", configSchema)

// ValidateConfig checks raw config JSON against the schema and verifies that
// every pattern in it compiles.
func ValidateConfig(raw []byte) error {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return common.NewAppError(common.CodeInvalidInput, "config is not valid JSON", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return common.NewAppError(common.CodeInvalidInput, "config failed schema validation", err)
	}

	var cfg entity.TemplateConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return common.NewAppError(common.CodeInvalidInput, "config does not decode", err)
	}
	return validatePatterns(cfg)
}

// ParseConfig validates raw config JSON and decodes it.
func ParseConfig(raw []byte) (entity.TemplateConfig, error) {
	if err := ValidateConfig(raw); err != nil {
		return entity.TemplateConfig{}, err
	}
	var cfg entity.TemplateConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return entity.TemplateConfig{}, common.NewAppError(common.CodeInvalidInput, "config does not decode", err)
	}
	return cfg, nil
}

func validatePatterns(cfg entity.TemplateConfig) error {
	check := func(where, p string) error {
		if p == "" {
			return nil
		}
		if _, err := regexp.Compile("(?im)" + p); err != nil {
			return common.NewAppError(common.CodeInvalidInput,
				fmt.Sprintf("pattern for %s does not compile", where), err)
		}
		return nil
	}
	for kind, ps := range cfg.Patterns {
		if !constants.KnownFieldKind(constants.FieldKind(kind)) {
			return common.NewAppError(common.CodeInvalidInput,
				fmt.Sprintf("unknown field kind %q", kind), nil)
		}
		for _, p := range ps {
			if err := check(kind, p); err != nil {
				return err
			}
		}
	}
	if err := check("table_start", cfg.TableStart); err != nil {
		return err
	}
	if err := check("table_end", cfg.TableEnd); err != nil {
		return err
	}
	for _, p := range cfg.Ignore {
		if err := check("ignore", p); err != nil {
			return err
		}
	}
	if err := check("table_columns.line_pattern", cfg.TableColumns.LinePattern); err != nil {
		return err
	}
	if cfg.DisplayLayout != "" && !constants.KnownLayout(cfg.DisplayLayout) {
		return common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("unknown display layout %q", cfg.DisplayLayout), nil)
	}
	return nil
}

// DefaultConfig is the starting config for a supplier with no template yet.
func DefaultConfig() entity.TemplateConfig {
	return entity.TemplateConfig{
		Patterns:      map[string][]string{},
		DisplayLayout: constants.LayoutStandard,
	}
}
