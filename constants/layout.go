package constants

// DisplayLayout selects which normalization rules apply to a supplier's
// parsed line items.
type DisplayLayout string

// Stable values (store these exact strings in template configs).
const (
	LayoutStandard    DisplayLayout = "standard"     // total = quantity * unit price
	LayoutWeightBased DisplayLayout = "weight-based" // bulk goods priced per kilogram
	LayoutB           DisplayLayout = "layout-B"     // integer-floored quantity/price multiplication
)

// KnownLayout reports whether l is one of the supported layout tags.
func KnownLayout(l DisplayLayout) bool {
	switch l {
	case LayoutStandard, LayoutWeightBased, LayoutB:
		return true
	}
	return false
}

// LineLayout identifies the pattern family a line-item pattern was compiled
// for, which determines how capture groups map onto line-item fields.
type LineLayout string

const (
	LineSingle    LineLayout = "single_line"
	LineTwoLine   LineLayout = "two_line"
	LineFixedCode LineLayout = "fixed_code"
)
