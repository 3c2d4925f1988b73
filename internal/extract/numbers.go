package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reXLDigit    = regexp.MustCompile(`(\d+)xl(\d)`)
	reLDigit     = regexp.MustCompile(`l(\d)`)
	reVATFive    = regexp.MustCompile(`(^|[^:])\s(\d{1,2})\s+5(\s+\d+[,\s])`)
	reVAT215     = regexp.MustCompile(`\s215(\s+\d+[\s,])`)
	reTrailDot   = regexp.MustCompile(`(\d+,\d+)\.\s+`)
	reCzechDate  = regexp.MustCompile(`^(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{4})$`)
	reDigitsOnly = regexp.MustCompile(`^\d+$`)
)

// CleanOCRText repairs recurring Tesseract misreads in Czech invoice scans
// before any pattern runs. Applied once per document; extraction over the
// cleaned text is idempotent.
func CleanOCRText(text string) string {
	// "12xl1kg" is "12x1kg"
	text = reXLDigit.ReplaceAllString(text, `${1}x${2}`)
	// lowercase l before a digit is a misread 1
	text = reLDigit.ReplaceAllString(text, `1${1}`)
	// "12 5" between amounts in table rows is a misread "12 %" VAT rate;
	// the leading non-colon guard keeps amounts after labels intact
	text = reVATFive.ReplaceAllString(text, `${1} ${2} %${3}`)
	// "215" between amounts is a misread "21 %"
	text = reVAT215.ReplaceAllString(text, ` 21 %${1}`)
	// trailing period after comma-decimal numbers
	text = reTrailDot.ReplaceAllString(text, `${1} `)
	return text
}

// ParseAmount converts a Czech-formatted number ("1 234,56") to a float.
// Unparsable input yields 0; extraction treats missing numbers as zero
// rather than failing the document.
func ParseAmount(raw string) float64 {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizeDate converts D.M.YYYY (with or without zero padding) to ISO
// YYYY-MM-DD. Input that does not look like a Czech date is returned
// unchanged so the caller can still display what was captured.
func NormalizeDate(raw string) string {
	m := reCzechDate.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return strings.TrimSpace(raw)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return strings.TrimSpace(raw)
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// fixLitreUnit repairs the "10 lt" misread where the unit's l gets glued to
// the quantity as a trailing 1 ("101" + unit "t"). Returns the corrected
// quantity and unit.
func fixLitreUnit(quantity float64, unit string) (float64, string) {
	if unit != "t" || quantity <= 10 {
		return quantity, unit
	}
	s := strconv.Itoa(int(quantity))
	if len(s) < 2 || !reDigitsOnly.MatchString(s) {
		return quantity, unit
	}
	fixed, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return quantity, unit
	}
	return fixed, "lt"
}
