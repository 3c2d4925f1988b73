package template

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// Repository is the persistence surface the store needs. Implemented by
// repository.TemplateRepository.
type Repository interface {
	Create(ctx context.Context, t *entity.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Template, error)
	GetActive(ctx context.Context, supplierID uuid.UUID) (*entity.Template, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]entity.Template, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, cfg entity.TemplateConfig) error
	Activate(ctx context.Context, supplierID, templateID uuid.UUID) error
	RecordUsage(ctx context.Context, id uuid.UUID, success bool) error
}

// Store manages per-supplier template versions. Configs are value types;
// every mutation goes through Clone + MergeCompiled so concurrent readers of
// a loaded template never observe a partial edit.
type Store struct {
	repo   Repository
	logger *slog.Logger
}

func NewStore(repo Repository, logger *slog.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

// MergeCompiled merges a compiled pattern into a config copy. Header and
// ignore patterns append (existing rules keep working for older invoice
// revisions); table boundaries and the line pattern replace, since only one
// of each can be in effect.
func MergeCompiled(cfg entity.TemplateConfig, cp CompiledPattern) entity.TemplateConfig {
	out := cfg.Clone()
	if cp.Pattern == "" {
		return out
	}
	switch cp.Kind {
	case constants.FieldInvoiceNumber, constants.FieldDate,
		constants.FieldTotalAmount, constants.FieldPaymentType:
		if out.Patterns == nil {
			out.Patterns = map[string][]string{}
		}
		key := string(cp.Kind)
		if !containsString(out.Patterns[key], cp.Pattern) {
			out.Patterns[key] = append(out.Patterns[key], cp.Pattern)
		}
	case constants.FieldTableStart:
		out.TableStart = cp.Pattern
	case constants.FieldTableEnd:
		out.TableEnd = cp.Pattern
	case constants.FieldIgnoreLine:
		if !containsString(out.Ignore, cp.Pattern) {
			out.Ignore = append(out.Ignore, cp.Pattern)
		}
	case constants.FieldLineItem:
		out.TableColumns = entity.TableColumns{
			LinePattern: cp.Pattern,
			LineLayout:  cp.LineLayout,
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// TrainResult is the preview returned by Train: the compiled pattern plus
// the config it would produce. Nothing is persisted until SaveVersion.
type TrainResult struct {
	Compiled CompiledPattern       `json:"compiled"`
	Merged   entity.TemplateConfig `json:"merged_config"`
}

// Train compiles a highlighted fragment for a field kind and merges it into
// the supplier's active config (or the default config when the supplier has
// none). The merged config is returned for review and is not saved.
func (s *Store) Train(ctx context.Context, supplierID uuid.UUID, fragment string, kind constants.FieldKind) (*TrainResult, error) {
	if !constants.KnownFieldKind(kind) {
		return nil, common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("unknown field kind %q", kind), nil)
	}
	if strings.TrimSpace(fragment) == "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "empty training fragment", nil)
	}

	base := DefaultConfig()
	active, err := s.repo.GetActive(ctx, supplierID)
	if err == nil && active != nil {
		base = active.Config
	}

	cp := Compile(fragment, kind)
	merged := MergeCompiled(base, cp)

	s.logger.Info("template.train",
		"supplier_id", supplierID,
		"kind", kind,
		"generalized", cp.Generalized,
		"warning", cp.Warning)
	return &TrainResult{Compiled: cp, Merged: merged}, nil
}

// SaveVersion persists cfg as a new template version for the supplier and
// activates it. The previous active version is deactivated, never deleted.
func (s *Store) SaveVersion(ctx context.Context, supplierID uuid.UUID, name string, cfg entity.TemplateConfig) (*entity.Template, error) {
	prev, err := s.repo.GetActive(ctx, supplierID)
	if err != nil && !common.IsNotFound(err) {
		return nil, err
	}

	version := "v1"
	if prev != nil {
		version = NextVersion(prev.Version)
		if name == "" {
			name = prev.TemplateName
		}
	}
	if name == "" {
		name = "default"
	}

	t := &entity.Template{
		ID:           uuid.New(),
		SupplierID:   supplierID,
		TemplateName: name,
		Version:      version,
		IsActive:     false,
		Config:       cfg.Clone(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	if err := s.repo.Activate(ctx, supplierID, t.ID); err != nil {
		return nil, err
	}
	t.IsActive = true

	s.logger.Info("template.save",
		"supplier_id", supplierID,
		"template_id", t.ID,
		"version", version)
	return t, nil
}

// Active returns the supplier's active template.
func (s *Store) Active(ctx context.Context, supplierID uuid.UUID) (*entity.Template, error) {
	return s.repo.GetActive(ctx, supplierID)
}

// List returns all template versions for a supplier, newest first.
func (s *Store) List(ctx context.Context, supplierID uuid.UUID) ([]entity.Template, error) {
	return s.repo.ListBySupplier(ctx, supplierID)
}

// Activate makes templateID the supplier's single active version.
func (s *Store) Activate(ctx context.Context, supplierID, templateID uuid.UUID) error {
	return s.repo.Activate(ctx, supplierID, templateID)
}

// RecordUsage bumps usage counters after an extraction run. Success means
// the run produced at least one line item and an invoice number.
func (s *Store) RecordUsage(ctx context.Context, id uuid.UUID, success bool) {
	if err := s.repo.RecordUsage(ctx, id, success); err != nil {
		s.logger.Warn("template.usage", "template_id", id, "error", err)
	}
}

// NextVersion increments a "vN" version string. Unparsable versions restart
// at v2 so saving never fails on legacy data.
func NextVersion(v string) string {
	n, err := strconv.Atoi(strings.TrimPrefix(v, "v"))
	if err != nil || n < 1 {
		return "v2"
	}
	return "v" + strconv.Itoa(n+1)
}
