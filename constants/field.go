package constants

// FieldKind names a template rule target. The pattern compiler generalizes a
// highlighted fragment differently per kind, and header extraction keys its
// pattern lists by the header kinds.
type FieldKind string

const (
	FieldInvoiceNumber FieldKind = "invoice_number"
	FieldDate          FieldKind = "date"
	FieldTotalAmount   FieldKind = "total_amount"
	FieldPaymentType   FieldKind = "payment_type"
	FieldTableStart    FieldKind = "table_start"
	FieldTableEnd      FieldKind = "table_end"
	FieldIgnoreLine    FieldKind = "ignore_line"
	FieldLineItem      FieldKind = "line_item"
)

// HeaderFieldKinds lists the kinds stored in a template's header pattern map,
// in extraction order.
var HeaderFieldKinds = []FieldKind{
	FieldInvoiceNumber,
	FieldDate,
	FieldTotalAmount,
	FieldPaymentType,
}

// KnownFieldKind reports whether k is a compilable rule target.
func KnownFieldKind(k FieldKind) bool {
	switch k {
	case FieldInvoiceNumber, FieldDate, FieldTotalAmount, FieldPaymentType,
		FieldTableStart, FieldTableEnd, FieldIgnoreLine, FieldLineItem:
		return true
	}
	return false
}
