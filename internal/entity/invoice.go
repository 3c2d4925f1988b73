package entity

import (
	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/constants"
)

// Header holds the extracted invoice header fields. Date is an ISO string
// after normalization; fields the template could not match stay zero-valued
// and lower Confidence.
type Header struct {
	InvoiceNumber string  `json:"invoice_number"`
	Date          string  `json:"date"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentType   string  `json:"payment_type"`
	Confidence    float64 `json:"confidence"`
}

// LineItem is one parsed invoice line. Layout-specific fields are pointers
// so "absent" is distinguishable from zero.
type LineItem struct {
	LineNumber  int     `json:"line_number"`
	ProductCode string  `json:"product_code,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit_of_measure,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	VATRate     float64 `json:"vat_rate,omitempty"`
	Total       float64 `json:"line_total"`

	// weight-based layout
	PackageWeightKg *float64 `json:"package_weight_kg,omitempty"`
	TotalWeightKg   *float64 `json:"total_weight_kg,omitempty"`
	PricePerKg      *float64 `json:"price_per_kg,omitempty"`

	// layout-B: user-overridable inputs to the floored total computation
	BasePrice        *float64 `json:"base_price,omitempty"`
	UnitsInMU        *float64 `json:"units_in_mu,omitempty"`
	QuantityOverride *float64 `json:"quantity_override,omitempty"`
	PriceOverride    *float64 `json:"price_override,omitempty"`

	// matching
	MatchStatus           constants.MatchStatus `json:"match_status"`
	MatchedIngredientID   *int64                `json:"matched_ingredient_id,omitempty"`
	MatchedIngredientName string                `json:"matched_ingredient_name,omitempty"`
	MatchConfidence       float64               `json:"match_confidence"`
}

// PackageWeightGrams is the display value for the package weight; storage
// stays in kilograms.
func (li LineItem) PackageWeightGrams() float64 {
	if li.PackageWeightKg == nil {
		return 0
	}
	return *li.PackageWeightKg * 1000
}

// ExtractionResult is one extraction run over (document, template). Never
// mutated in place; edits clone it before approval.
type ExtractionResult struct {
	Header        Header     `json:"header"`
	Lines         []LineItem `json:"lines"`
	UnmappedCount int        `json:"unmapped_count"`
	TemplateUsed  string     `json:"template_used"`

	// Diagnostics are informational banners (zero lines, low confidence),
	// never errors. NoMatchRate is the fraction of candidate line groups the
	// line pattern failed to match.
	Diagnostics []string `json:"diagnostics,omitempty"`
	NoMatchRate float64  `json:"no_match_rate"`
}

// Clone returns a deep copy for pre-approval edits.
func (r *ExtractionResult) Clone() *ExtractionResult {
	out := *r
	out.Lines = append([]LineItem(nil), r.Lines...)
	out.Diagnostics = append([]string(nil), r.Diagnostics...)
	return &out
}

// PersistedInvoice is an invoice header as stored by the approval
// transaction. TotalAmount is always the sum of persisted line totals.
type PersistedInvoice struct {
	ID               uuid.UUID                  `json:"id"`
	InvoiceNumber    string                     `json:"invoice_number"`
	SupplierID       uuid.UUID                  `json:"supplier_id"`
	ReceiverID       *uuid.UUID                 `json:"receiver_id,omitempty"`
	InvoiceDate      string                     `json:"invoice_date,omitempty"`
	TotalAmount      float64                    `json:"total_amount"`
	PaymentType      string                     `json:"payment_type,omitempty"`
	ProcessingStatus constants.ProcessingStatus `json:"processing_status"`
	Lines            []PersistedLine            `json:"lines,omitempty"`
}

// PersistedLine is one stored line item. IngredientID is never nil here;
// unmapped lines are excluded before persistence.
type PersistedLine struct {
	ID                 uuid.UUID `json:"id"`
	InvoiceID          uuid.UUID `json:"invoice_id"`
	IngredientID       int64     `json:"ingredient_id"`
	LineNumber         int       `json:"line_number"`
	Quantity           float64   `json:"quantity"`
	UnitPrice          float64   `json:"unit_price"`
	LineTotal          float64   `json:"line_total"`
	UnitOfMeasure      string    `json:"unit_of_measure,omitempty"`
	MatchingConfidence float64   `json:"matching_confidence"`
	TotalWeightKg      *float64  `json:"total_weight_kg,omitempty"`
	PricePerKg         *float64  `json:"price_per_kg,omitempty"`
	PackageWeightKg    *float64  `json:"package_weight_kg,omitempty"`
}
