package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// Extractor turns OCR text into a typed extraction result using a supplier
// template. It is stateless and safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract runs the template over the document text. It fails only on unusable
// input (nil template, empty text); a template that matches nothing yields a
// result with zero lines and diagnostics, not an error.
func (e *Extractor) Extract(doc *entity.RawDocument, tpl *entity.Template) (*entity.ExtractionResult, error) {
	if tpl == nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "no template for extraction", nil)
	}
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "empty document text", nil)
	}

	e.logger.Info("extract.start",
		"template_id", tpl.ID,
		"version", tpl.Version,
		"text_len", len(doc.Text))

	cfg := tpl.Config
	text := CleanOCRText(doc.Text)

	header := e.extractHeader(text, cfg)

	var diags []string
	region, regionOK := tableRegion(text, cfg)
	if !regionOK {
		diags = append(diags, "table start marker not found")
	}

	lines, noMatchRate := e.extractLines(region, cfg)
	header.Confidence = Confidence(header, lines)

	if cfg.TableColumns.LinePattern == "" {
		diags = append(diags, "template has no line-item pattern; column fallback used")
	}
	if header.InvoiceNumber == "" {
		diags = append(diags, "invoice number not found")
	}
	if len(lines) == 0 {
		diags = append(diags, "no line items extracted")
	}
	if noMatchRate > 0.5 && len(lines) > 0 {
		diags = append(diags, "line pattern missed most candidate lines")
	}
	if header.Confidence < 0.5 {
		diags = append(diags, "low extraction confidence")
	}

	res := &entity.ExtractionResult{
		Header:       header,
		Lines:        lines,
		TemplateUsed: fmt.Sprintf("%s/%s", tpl.TemplateName, tpl.Version),
		Diagnostics:  diags,
		NoMatchRate:  noMatchRate,
	}

	e.logger.Info("extract.done",
		"invoice_number", header.InvoiceNumber,
		"lines", len(lines),
		"confidence", header.Confidence,
		"no_match_rate", noMatchRate)
	return res, nil
}

func (e *Extractor) extractHeader(text string, cfg entity.TemplateConfig) entity.Header {
	var h entity.Header
	for _, kind := range constants.HeaderFieldKinds {
		raw := e.firstMatch(text, cfg.HeaderPatterns(kind))
		if raw == "" {
			continue
		}
		switch kind {
		case constants.FieldInvoiceNumber:
			h.InvoiceNumber = raw
		case constants.FieldDate:
			h.Date = NormalizeDate(raw)
		case constants.FieldTotalAmount:
			h.TotalAmount = ParseAmount(raw)
		case constants.FieldPaymentType:
			h.PaymentType = raw
		}
	}
	return h
}

// firstMatch tries each pattern in order and returns the first capture
// (group 1 when the pattern has groups, the whole match otherwise).
func (e *Extractor) firstMatch(text string, patterns []string) string {
	for _, p := range patterns {
		re, err := regexp.Compile("(?im)" + p)
		if err != nil {
			e.logger.Warn("extract.pattern", "pattern", p, "error", err)
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		return strings.TrimSpace(m[0])
	}
	return ""
}

// tableRegion cuts out the line-item section. The end marker uses the LAST
// occurrence after the start so multi-page tables with per-page footers keep
// all pages.
func tableRegion(text string, cfg entity.TemplateConfig) (string, bool) {
	if cfg.TableStart == "" {
		return text, true
	}
	reStart, err := regexp.Compile("(?im)" + cfg.TableStart)
	if err != nil {
		return "", false
	}
	loc := reStart.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	start := loc[1]

	end := len(text)
	if cfg.TableEnd != "" {
		if reEnd, err := regexp.Compile("(?im)" + cfg.TableEnd); err == nil {
			for _, l := range reEnd.FindAllStringIndex(text, -1) {
				if l[0] >= start {
					end = l[0]
				}
			}
		}
	}
	return text[start:end], true
}

func (e *Extractor) extractLines(region string, cfg entity.TemplateConfig) ([]entity.LineItem, float64) {
	if strings.TrimSpace(region) == "" {
		return nil, 0
	}

	lines := filterIgnored(strings.Split(region, "\n"), cfg.Ignore)
	pattern := cfg.TableColumns.LinePattern
	layout := cfg.TableColumns.LineLayout
	if layout == "" {
		if strings.Contains(pattern, `\n`) {
			layout = constants.LineTwoLine
		} else {
			layout = constants.LineSingle
		}
	}

	if strings.Contains(pattern, `\n`) {
		return e.extractSpanned(lines, pattern, layout)
	}
	return e.extractPerLine(lines, pattern, layout)
}

// extractSpanned walks the lines pairing each with its successor: a match
// consumes both lines, a miss advances one so a stray line between items
// never desynchronizes the rest of the table.
func (e *Extractor) extractSpanned(lines []string, pattern string, layout constants.LineLayout) ([]entity.LineItem, float64) {
	re, err := regexp.Compile("(?im)" + pattern)
	if err != nil {
		e.logger.Warn("extract.linepattern", "pattern", pattern, "error", err)
		return nil, 0
	}

	var items []entity.LineItem
	candidates, misses := 0, 0
	for i := 0; i < len(lines); {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}
		if i+1 >= len(lines) {
			misses++
			candidates++
			break
		}
		candidates++
		pair := lines[i] + "\n" + lines[i+1]
		m := re.FindStringSubmatch(pair)
		if m == nil {
			misses++
			i++
			continue
		}
		item := mapGroups(layout, m[1:])
		item.LineNumber = len(items) + 1
		if item.ProductCode != "" {
			items = append(items, item)
		}
		i += 2
	}
	return items, missRate(misses, candidates)
}

func (e *Extractor) extractPerLine(lines []string, pattern string, layout constants.LineLayout) ([]entity.LineItem, float64) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile("(?im)" + pattern)
		if err != nil {
			e.logger.Warn("extract.linepattern", "pattern", pattern, "error", err)
			re = nil
		}
	}

	var items []entity.LineItem
	candidates, misses := 0, 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if len(line) < 5 {
			continue
		}
		candidates++

		var item *entity.LineItem
		if re != nil {
			if m := re.FindStringSubmatch(line); m != nil {
				mapped := mapGroups(layout, m[1:])
				item = &mapped
			}
		}
		if item == nil {
			item = itemFromColumns(line)
		}
		if item == nil || item.ProductCode == "" {
			misses++
			continue
		}
		item.LineNumber = len(items) + 1
		items = append(items, *item)
	}
	return items, missRate(misses, candidates)
}

func missRate(misses, candidates int) float64 {
	if candidates == 0 {
		return 0
	}
	return float64(misses) / float64(candidates)
}

func filterIgnored(lines []string, patterns []string) []string {
	if len(patterns) == 0 {
		return lines
	}
	var res []*regexp.Regexp
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			res = append(res, re)
		}
	}
	out := lines[:0:0]
	for _, line := range lines {
		drop := false
		for _, re := range res {
			if re.MatchString(strings.TrimSpace(line)) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, line)
		}
	}
	return out
}

// mapGroups assigns capture groups to line-item fields by pattern family and
// group count. Quantity and unit go through the litre-unit OCR repair.
func mapGroups(layout constants.LineLayout, g []string) entity.LineItem {
	var li entity.LineItem
	get := func(i int) string {
		if i < len(g) {
			return strings.TrimSpace(g[i])
		}
		return ""
	}

	switch layout {
	case constants.LineTwoLine:
		li.Description = get(0)
		li.ProductCode = get(1)
		li.Quantity = ParseAmount(get(2))
		li.Unit = get(3)
		li.UnitPrice = ParseAmount(get(4))
		if len(g) >= 7 {
			li.VATRate = ParseAmount(get(5))
			li.Total = ParseAmount(get(6))
		} else {
			li.Total = ParseAmount(get(5))
		}
	case constants.LineFixedCode:
		li.ProductCode = get(0)
		li.Description = get(1)
		li.Quantity = ParseAmount(get(2))
		li.Unit = get(3)
		li.UnitPrice = ParseAmount(get(4))
		li.Total = ParseAmount(get(5))
	default:
		li.ProductCode = get(0)
		li.Description = get(1)
		li.Quantity = ParseAmount(get(2))
		switch {
		case len(g) == 4:
			li.UnitPrice = ParseAmount(get(3))
		case len(g) == 5 && reNumeric.MatchString(get(3)):
			// qty, price, total (no unit column)
			li.UnitPrice = ParseAmount(get(3))
			li.Total = ParseAmount(get(4))
		default:
			li.Unit = get(3)
			li.UnitPrice = ParseAmount(get(4))
			li.Total = ParseAmount(get(5))
		}
	}

	li.Quantity, li.Unit = fixLitreUnit(li.Quantity, li.Unit)
	return li
}

var (
	reColSep   = regexp.MustCompile(`\s{2,}`)
	reCodeTok  = regexp.MustCompile(`^[\w-]+$`)
	rePunctTok = regexp.MustCompile(`^[.,\s]+$`)
	reNumeric  = regexp.MustCompile(`^[\d\s.,]+$`)
)

// itemFromColumns is the patternless fallback: split on column gaps, peel a
// leading code token, then assign the numeric columns as quantity, unit
// price, and line total.
func itemFromColumns(line string) *entity.LineItem {
	parts := reColSep.Split(line, -1)
	if len(parts) < 2 {
		parts = strings.Fields(line)
	}
	if len(parts) < 2 {
		return nil
	}

	var li entity.LineItem
	rest := parts
	if reCodeTok.MatchString(parts[0]) {
		li.ProductCode = parts[0]
		rest = parts[1:]
	}

	var numbers []float64
	var words []string
	for _, part := range rest {
		cleaned := strings.NewReplacer(",", ".", " ", "").Replace(part)
		if v, err := strconv.ParseFloat(cleaned, 64); err == nil {
			numbers = append(numbers, v)
			continue
		}
		if strings.TrimSpace(part) != "" && !rePunctTok.MatchString(part) {
			words = append(words, part)
		}
	}
	li.Description = strings.Join(words, " ")

	if len(numbers) >= 1 {
		li.Quantity = numbers[0]
	}
	if len(numbers) >= 2 {
		li.UnitPrice = numbers[1]
	}
	if len(numbers) >= 3 {
		li.Total = numbers[2]
	} else if len(numbers) == 2 {
		li.Total = li.Quantity * li.UnitPrice
	}

	if li.ProductCode == "" && li.Description == "" {
		return nil
	}
	li.Quantity, li.Unit = fixLitreUnit(li.Quantity, li.Unit)
	if li.ProductCode != "" && (li.Quantity > 0 || li.UnitPrice > 0) {
		return &li
	}
	return nil
}
