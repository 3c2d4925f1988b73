package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/constants"
)

// Template is a supplier's versioned extraction configuration for data
// transfer between layers. A supplier has at most one active template at a
// time; templates are never deleted, only deactivated.
type Template struct {
	ID           uuid.UUID      `json:"id"`
	SupplierID   uuid.UUID      `json:"supplier_id"`
	TemplateName string         `json:"template_name"`
	Version      string         `json:"version"`
	IsActive     bool           `json:"is_active"`
	Config       TemplateConfig `json:"config"`
	UsageCount   int            `json:"usage_count"`
	SuccessRate  float64        `json:"success_rate"`
	LastUsedAt   *string        `json:"last_used_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TemplateConfig is the JSON document stored in invoice_templates.config.
//
// Patterns maps a header field kind to an ordered list of extraction
// patterns; extraction tries them in order and takes the first match.
// Merging compiler output appends rather than replaces (see Merge).
type TemplateConfig struct {
	Patterns      map[string][]string     `json:"patterns,omitempty"`
	TableStart    string                  `json:"table_start,omitempty"`
	TableEnd      string                  `json:"table_end,omitempty"`
	Ignore        []string                `json:"ignore,omitempty"`
	TableColumns  TableColumns            `json:"table_columns"`
	DisplayLayout constants.DisplayLayout `json:"display_layout"`
}

// TableColumns configures line-item parsing.
type TableColumns struct {
	LinePattern string               `json:"line_pattern,omitempty"`
	LineLayout  constants.LineLayout `json:"line_layout,omitempty"`
}

// HeaderPatterns returns the pattern list for a header field kind.
func (c TemplateConfig) HeaderPatterns(kind constants.FieldKind) []string {
	return c.Patterns[string(kind)]
}

// Clone returns a deep copy of the config so merges never mutate the
// receiver.
func (c TemplateConfig) Clone() TemplateConfig {
	out := c
	if c.Patterns != nil {
		out.Patterns = make(map[string][]string, len(c.Patterns))
		for k, v := range c.Patterns {
			out.Patterns[k] = append([]string(nil), v...)
		}
	}
	out.Ignore = append([]string(nil), c.Ignore...)
	return out
}
