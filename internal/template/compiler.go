package template

import (
	"regexp"
	"strings"

	"github.com/pekarna-dev/invoice-engine/constants"
)

// CompiledPattern is the output of generalizing a user-highlighted fragment
// into a reusable extraction pattern. Compile is pure; merging the result
// into a template config is the caller's responsibility (see MergeCompiled).
type CompiledPattern struct {
	Kind    constants.FieldKind `json:"kind"`
	Pattern string              `json:"pattern"`

	// LineLayout is set for line_item patterns and tells the extractor how
	// capture groups map onto fields.
	LineLayout constants.LineLayout `json:"line_layout,omitempty"`

	// Generalized is false when no variable structure was detected and the
	// pattern is the escaped literal. Still valid, but low quality.
	Generalized bool   `json:"generalized"`
	Warning     string `json:"warning,omitempty"`
}

const (
	// dateRun matches Czech-style dates as they appear in OCR text.
	dateRun   = `\d{1,2}\.\d{1,2}\.\d{4}`
	dateGroup = `(` + dateRun + `)`

	// czechWord captures letters only (Czech + Latin alphabet) so trailing
	// digits or punctuation never leak into a captured payment type.
	czechWord = `([a-zA-ZáčďéěíňóřšťúůýžÁČĎÉĚÍŇÓŘŠŤÚŮÝŽ]+)`

	numberRun  = `\d+[.,]?\d*`
	amountRun  = `[\d\s]+[.,]?\d*`
	unitRun    = `[^\W\d_]+`
	WarnPageNo = "looks like a page number"
)

var (
	reDigitRun5  = regexp.MustCompile(`[0-9]{5,}`)
	reDigitRun   = regexp.MustCompile(`[0-9]+`)
	reDateRun    = regexp.MustCompile(dateRun)
	reAmountRun  = regexp.MustCompile(`\d[\d\s.,]*\d|\d`)
	reSpaceRun   = regexp.MustCompile(`[ \t]+`)
	reColSplit   = regexp.MustCompile(`\s{2,}`)
	reNumericCol = regexp.MustCompile(`^[\d\s.,]+$`)
	reCodeCol    = regexp.MustCompile(`^[\w-]+$`)
	reFixedCode  = regexp.MustCompile(`^\d{8}\s`)
	reBatchFoot  = regexp.MustCompile(`^\d{8}\s+` + dateRun + `\s+[\d\s,.]+$`)

	// deliveryLabels anchor a date pattern to its label instead of
	// generalizing the whole fragment (delivery/taxable-supply dates share
	// the page with several other dates).
	deliveryLabels = []string{"Datum dodání", "Datum uskutečnění", "DUZP"}
)

// Compile turns a literal text fragment into an extraction pattern for the
// given field kind. It never fails; when no variable structure is detected
// the escaped literal is returned with Generalized=false.
func Compile(fragment string, kind constants.FieldKind) CompiledPattern {
	cp := CompiledPattern{Kind: kind}
	frag := strings.TrimSpace(fragment)
	if frag == "" {
		cp.Pattern = ""
		return cp
	}

	switch kind {
	case constants.FieldInvoiceNumber:
		cp.Pattern, cp.Generalized = compileInvoiceNumber(frag)
		if !cp.Generalized && longestDigitRun(frag) <= 2 {
			cp.Warning = WarnPageNo
		}
	case constants.FieldDate:
		cp.Pattern, cp.Generalized = compileDate(frag)
	case constants.FieldTotalAmount:
		cp.Pattern, cp.Generalized = compileTotalAmount(frag)
	case constants.FieldPaymentType:
		cp.Pattern, cp.Generalized = compilePaymentType(frag)
	case constants.FieldTableStart, constants.FieldTableEnd:
		cp.Pattern, cp.Generalized = flexWhitespace(regexp.QuoteMeta(frag))
	case constants.FieldIgnoreLine:
		cp.Pattern, cp.Generalized = compileIgnoreLine(frag)
	case constants.FieldLineItem:
		cp.Pattern, cp.LineLayout, cp.Generalized = compileLineItem(fragment)
	default:
		cp.Pattern = regexp.QuoteMeta(frag)
	}
	return cp
}

// generalizeRuns escapes the fragment while replacing every match of re with
// a replacement chosen per occurrence index. Returns the pattern and the
// number of runs replaced.
func generalizeRuns(frag string, re *regexp.Regexp, repl func(i int) string) (string, int) {
	locs := re.FindAllStringIndex(frag, -1)
	if len(locs) == 0 {
		return regexp.QuoteMeta(frag), 0
	}
	var b strings.Builder
	last := 0
	for i, loc := range locs {
		b.WriteString(regexp.QuoteMeta(frag[last:loc[0]]))
		b.WriteString(repl(i))
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(frag[last:]))
	return b.String(), len(locs)
}

func longestDigitRun(frag string) int {
	max := 0
	for _, r := range reDigitRun.FindAllString(frag, -1) {
		if len(r) > max {
			max = len(r)
		}
	}
	return max
}

// compileInvoiceNumber generalizes runs of >=5 digits only. Shorter runs are
// left literal; they are almost always page numbers ("Strana 1") and
// generalizing them would match the wrong token.
func compileInvoiceNumber(frag string) (string, bool) {
	pattern, n := generalizeRuns(frag, reDigitRun5, func(i int) string {
		if i == 0 {
			return `(\d{5,})`
		}
		return `\d{5,}`
	})
	return pattern, n > 0
}

func compileDate(frag string) (string, bool) {
	if reDateRun.MatchString(frag) {
		for _, label := range deliveryLabels {
			if strings.Contains(frag, label) {
				return regexp.QuoteMeta(label) + `[\s:.]*` + dateGroup, true
			}
		}
	}
	pattern, n := generalizeRuns(frag, reDateRun, func(i int) string {
		if i == 0 {
			return dateGroup
		}
		return dateRun
	})
	return pattern, n > 0
}

func compileTotalAmount(frag string) (string, bool) {
	pattern, n := generalizeRuns(frag, reAmountRun, func(i int) string {
		if i == 0 {
			return `([\d\s,.]+)`
		}
		return `[\d\s,.]+`
	})
	return pattern, n > 0
}

// compilePaymentType keeps the label words literal and captures the trailing
// value as a letters-only word.
func compilePaymentType(frag string) (string, bool) {
	words := strings.Fields(frag)
	if len(words) < 2 {
		return regexp.QuoteMeta(frag), false
	}
	label := strings.Join(words[:len(words)-1], " ")
	escaped, _ := flexWhitespace(regexp.QuoteMeta(label))
	return escaped + `\s+` + czechWord, true
}

// flexWhitespace collapses literal whitespace runs in an already-escaped
// pattern into \s+.
func flexWhitespace(escaped string) (string, bool) {
	out := reSpaceRun.ReplaceAllString(escaped, `\s+`)
	return out, out != escaped
}

func compileIgnoreLine(frag string) (string, bool) {
	// Known shapes get pre-built flexible patterns instead of over-fitting
	// to the literal sample.
	if strings.Contains(frag, "Označení") && strings.Contains(frag, "Množství") {
		return `^\s*Označení\s+dodávky\s+Množství\s+Cena.*$`, true
	}
	if reBatchFoot.MatchString(frag) {
		// batch-number + date + quantity footer rows
		return `^\d{8}\s+` + dateRun + `[\d\s,.]*$`, true
	}
	escaped, gen := flexWhitespace(regexp.QuoteMeta(frag))
	return `^` + escaped + `$`, gen
}

func compileLineItem(fragment string) (string, constants.LineLayout, bool) {
	frag := strings.Trim(fragment, "\r\n")

	if strings.Contains(frag, "\n") {
		// Two physical lines: free-text description, then
		// code / quantity+unit / price / VAT / total.
		pattern := `^(.{3,}?)\s*\n\s*(\S+)\s+(` + numberRun + `)\s*(` + unitRun + `)\s+(` +
			numberRun + `)\s+(\d+)\s*%?\s+(` + amountRun + `)\s*$`
		return pattern, constants.LineTwoLine, true
	}

	trimmed := strings.TrimSpace(frag)
	if reFixedCode.MatchString(trimmed) {
		// Fixed 8-digit product code layout.
		pattern := `^(\d{8})\s+(.+?)\s+(` + numberRun + `)\s+(` + unitRun + `)\s+(` +
			numberRun + `)\s+(` + amountRun + `)\s*$`
		return pattern, constants.LineFixedCode, true
	}

	cols := reColSplit.Split(trimmed, -1)
	if len(cols) < 2 {
		cols = strings.Fields(trimmed)
	}
	if len(cols) >= 2 {
		if p, ok := buildColumnPattern(cols); ok {
			return p, constants.LineSingle, true
		}
	}

	// Best-effort description/code/quantity/price template.
	pattern := `^(\S+)\s+(.+?)\s+(` + numberRun + `)\s+(` + numberRun + `)\s*$`
	return pattern, constants.LineSingle, false
}

// buildColumnPattern derives a single-line pattern from detected columns:
// an optional leading code column, a description, then the trailing numeric
// columns (quantity, price, and total when present).
func buildColumnPattern(cols []string) (string, bool) {
	numeric := 0
	for i := len(cols) - 1; i > 0; i-- {
		if reNumericCol.MatchString(cols[i]) {
			numeric++
		} else {
			break
		}
	}
	if numeric < 2 {
		return "", false
	}
	if numeric > 3 {
		numeric = 3
	}

	var b strings.Builder
	b.WriteString(`^`)
	if reCodeCol.MatchString(cols[0]) && !reNumericCol.MatchString(cols[0]) {
		b.WriteString(`([\w-]+)\s+`)
	} else {
		b.WriteString(`(\S+)\s+`)
	}
	b.WriteString(`(.+?)`)
	for i := 0; i < numeric; i++ {
		b.WriteString(`\s+(` + amountRun + `)`)
	}
	b.WriteString(`\s*$`)
	return b.String(), true
}
