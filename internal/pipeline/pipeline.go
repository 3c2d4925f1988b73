// Package pipeline runs a document through extraction, layout normalization,
// and ingredient matching. Each stage is pure; the only side effect is the
// template usage counter.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
	"github.com/pekarna-dev/invoice-engine/internal/extract"
	"github.com/pekarna-dev/invoice-engine/internal/layout"
	"github.com/pekarna-dev/invoice-engine/internal/match"
	"github.com/pekarna-dev/invoice-engine/internal/template"
)

type Processor struct {
	extractor *extract.Extractor
	matcher   *match.Matcher
	templates *template.Store
	logger    *slog.Logger
}

func New(extractor *extract.Extractor, matcher *match.Matcher, templates *template.Store, logger *slog.Logger) *Processor {
	return &Processor{
		extractor: extractor,
		matcher:   matcher,
		templates: templates,
		logger:    logger,
	}
}

// Process runs the supplier's active template over the document. Documents
// are independent; callers may process many concurrently.
func (p *Processor) Process(ctx context.Context, supplierID uuid.UUID, doc *entity.RawDocument) (*entity.ExtractionResult, error) {
	tpl, err := p.templates.Active(ctx, supplierID)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, common.NewAppError(common.CodeNotFound,
				fmt.Sprintf("no active template for supplier %s", supplierID), err)
		}
		return nil, err
	}

	res, err := p.ProcessWith(ctx, supplierID, doc, tpl)
	if err != nil {
		return nil, err
	}

	success := res.Header.InvoiceNumber != "" && len(res.Lines) > 0
	p.templates.RecordUsage(ctx, tpl.ID, success)
	return res, nil
}

// ProcessWith runs a specific template, used for previewing an unsaved
// config against a sample document. Usage counters are not touched.
func (p *Processor) ProcessWith(ctx context.Context, supplierID uuid.UUID, doc *entity.RawDocument, tpl *entity.Template) (*entity.ExtractionResult, error) {
	res, err := p.extractor.Extract(doc, tpl)
	if err != nil {
		return nil, err
	}

	res.Lines = layout.Normalize(tpl.Config.DisplayLayout, res.Lines)

	res.Lines, res.UnmappedCount, err = p.matcher.MatchAll(ctx, supplierID, res.Lines)
	if err != nil {
		return nil, err
	}
	if res.UnmappedCount > 0 {
		res.Diagnostics = append(res.Diagnostics,
			fmt.Sprintf("%d line items have no ingredient mapping", res.UnmappedCount))
	}

	p.logger.Info("pipeline.done",
		"supplier_id", supplierID,
		"invoice_number", res.Header.InvoiceNumber,
		"lines", len(res.Lines),
		"unmapped", res.UnmappedCount)
	return res, nil
}
