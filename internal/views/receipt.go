package views

import "billed/internal/core"

// ReceiptModal is the data of the receipt modal partial.
type ReceiptModal struct {
	Row
	Width int
}

// NewReceiptModal sizes the receipt image to half the requested modal
// width, with a floor for narrow screens.
func NewReceiptModal(b core.Bill, modalWidth int) ReceiptModal {
	w := modalWidth / 2
	if w < 240 {
		w = 240
	}
	return ReceiptModal{Row: NewRow(b), Width: w}
}
