package extract

import "github.com/pekarna-dev/invoice-engine/internal/entity"

// Confidence scores an extraction run on a 0..1 scale: 20 points for an
// invoice number, 20 for a date, and 60 weighted by the fraction of line
// items that carry both a product code and a positive quantity.
func Confidence(header entity.Header, lines []entity.LineItem) float64 {
	score := 0.0
	if header.InvoiceNumber != "" {
		score += 20
	}
	if header.Date != "" {
		score += 20
	}
	if len(lines) > 0 {
		complete := 0
		for _, li := range lines {
			if li.ProductCode != "" && li.Quantity > 0 {
				complete++
			}
		}
		score += float64(complete) / float64(len(lines)) * 60
	}
	return score / 100
}
