package entity

// Barcode is a barcode or QR payload detected on a page by the OCR
// collaborator.
type Barcode struct {
	Data      string `json:"data"`
	Symbology string `json:"type"`
	Page      int    `json:"page"`
}

// Page carries per-page OCR artifacts.
type Page struct {
	Number   int       `json:"number"`
	Barcodes []Barcode `json:"barcodes,omitempty"`
}

// RawDocument is the OCR collaborator's output for one scanned invoice.
// Immutable once produced.
type RawDocument struct {
	Text       string  `json:"text"`
	Pages      []Page  `json:"pages,omitempty"`
	Confidence float32 `json:"confidence"`
}
