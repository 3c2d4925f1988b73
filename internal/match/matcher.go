// Package match resolves parsed invoice lines against the ingredient
// catalog. Matching is read-only; recording new code mappings belongs to the
// catalog maintenance flow, not here.
package match

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// Catalog is the ingredient catalog collaborator.
type Catalog interface {
	// LookupCode resolves a supplier product code. Returns the ingredient and
	// the supplier's list price (may be nil); common.ErrNotFound when the
	// code has no mapping.
	LookupCode(ctx context.Context, supplierID uuid.UUID, productCode string) (*entity.Ingredient, *float64, error)
	// SearchByName returns fuzzy-match candidates for a folded name.
	SearchByName(ctx context.Context, name string) ([]entity.Ingredient, error)
}

// Matcher assigns a match status to every line. Exactly one status holds per
// line, and an ingredient id is present iff the line is not unmapped.
type Matcher struct {
	catalog Catalog
	floor   float64
	logger  *slog.Logger
}

func New(catalog Catalog, similarityFloor float64, logger *slog.Logger) *Matcher {
	return &Matcher{catalog: catalog, floor: similarityFloor, logger: logger}
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips diacritics and the weight marker so that
// "Mouka hladká" and "*mouka hladka" compare equal.
func Fold(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "* ")
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// MatchAll matches every line and returns the new slice plus the unmapped
// count. Only catalog outages fail; an unmatchable line is a per-line status,
// never an error.
func (m *Matcher) MatchAll(ctx context.Context, supplierID uuid.UUID, lines []entity.LineItem) ([]entity.LineItem, int, error) {
	out := make([]entity.LineItem, len(lines))
	unmapped := 0
	for i, li := range lines {
		matched, err := m.matchOne(ctx, supplierID, li)
		if err != nil {
			return nil, 0, err
		}
		if matched.MatchStatus == constants.MatchUnmapped {
			unmapped++
		}
		out[i] = matched
	}
	m.logger.Info("match.done",
		"supplier_id", supplierID,
		"lines", len(lines),
		"unmapped", unmapped)
	return out, unmapped, nil
}

func (m *Matcher) matchOne(ctx context.Context, supplierID uuid.UUID, li entity.LineItem) (entity.LineItem, error) {
	if li.ProductCode != "" {
		ing, price, err := m.catalog.LookupCode(ctx, supplierID, li.ProductCode)
		switch {
		case err == nil:
			li.MatchStatus = constants.MatchExact
			li.MatchedIngredientID = &ing.ID
			li.MatchedIngredientName = ing.Name
			li.MatchConfidence = 1.0
			if li.UnitPrice == 0 && price != nil {
				li.UnitPrice = *price
			}
			return li, nil
		case common.IsNotFound(err):
			// fall through to fuzzy name matching
		default:
			return li, common.WrapError(err, "catalog code lookup")
		}
	}

	return m.matchByName(ctx, li)
}

func (m *Matcher) matchByName(ctx context.Context, li entity.LineItem) (entity.LineItem, error) {
	name := Fold(li.Description)
	if name == "" {
		return unmatched(li), nil
	}

	candidates, err := m.catalog.SearchByName(ctx, name)
	if err != nil && !common.IsNotFound(err) {
		return li, common.WrapError(err, "catalog name search")
	}

	var best *entity.Ingredient
	bestScore := 0.0
	for i := range candidates {
		score := levenshtein.Similarity(name, Fold(candidates[i].Name), nil)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}

	if best == nil || bestScore < m.floor {
		return unmatched(li), nil
	}
	li.MatchStatus = constants.MatchFuzzyName
	li.MatchedIngredientID = &best.ID
	li.MatchedIngredientName = best.Name
	li.MatchConfidence = bestScore
	return li, nil
}

func unmatched(li entity.LineItem) entity.LineItem {
	li.MatchStatus = constants.MatchUnmapped
	li.MatchedIngredientID = nil
	li.MatchedIngredientName = ""
	li.MatchConfidence = 0
	return li
}
