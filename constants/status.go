package constants

// MatchStatus classifies how a line item was resolved against the
// ingredient catalog.
type MatchStatus string

// Stable values (store these exact strings in DB).
const (
	MatchExact     MatchStatus = "exact"      // (supplier, product code) lookup hit
	MatchFuzzyName MatchStatus = "fuzzy_name" // name similarity above the floor
	MatchUnmapped  MatchStatus = "unmapped"   // no acceptable match
)

// ProcessingStatus is the canonical status for rows in invoices_received.
type ProcessingStatus string

const (
	StatusPending  ProcessingStatus = "PENDING"  // extracted, awaiting review
	StatusApproved ProcessingStatus = "APPROVED" // persisted with line items
)
