// Package expenses records incoming receipts until they are booked and paid.
package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
)

// Status enumerates expense document states.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusBooked Status = "BOOKED"
	StatusPaid   Status = "PAID"
)

// Document is a supplier receipt or bill.
type Document struct {
	ID           int64      `json:"id"`
	Number       string     `json:"number"`
	Title        string     `json:"title"`
	SupplierName string     `json:"supplier_name,omitempty"`
	Currency     string     `json:"currency"`
	Status       Status     `json:"status"`
	ReceiptDate  *time.Time `json:"receipt_date,omitempty"`
	Lines        []Line     `json:"lines"`
	Version      int64      `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	BookedAt     *time.Time `json:"booked_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

// Line is a positioned expense line.
type Line struct {
	ID              int64           `json:"id"`
	Position        int             `json:"position"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// PricingLines converts stored lines to calculator input.
func (d Document) PricingLines() []pricing.Line {
	out := make([]pricing.Line, 0, len(d.Lines))
	for _, l := range d.Lines {
		out = append(out, pricing.Line{
			Position:    l.Position,
			Description: l.Description,
			LineInput: pricing.LineInput{
				Quantity:        l.Quantity,
				UnitPrice:       l.UnitPrice,
				TaxRate:         l.TaxRate,
				DiscountPercent: l.DiscountPercent,
			},
		})
	}
	return out
}

// parseLines validates a line payload and converts it to stored lines.
func parseLines(reqs []LineRequest) ([]Line, error) {
	parsed, err := pricing.ParseLines(reqs)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(parsed))
	for _, l := range parsed {
		lines = append(lines, Line{
			Position:        l.Position,
			Description:     l.Description,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			TaxRate:         l.TaxRate,
			DiscountPercent: l.DiscountPercent,
		})
	}
	return lines, nil
}

// LineRequest is one line in a create or replace payload.
type LineRequest = pricing.LineRequest

// CreateRequest is the payload for a new expense document.
type CreateRequest struct {
	Title        string        `json:"title" validate:"required,max=200"`
	SupplierName string        `json:"supplier_name" validate:"max=200"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
	ReceiptDate  *time.Time    `json:"receipt_date"`
	Lines        []LineRequest `json:"lines" validate:"dive"`
}

// UpdateRequest edits the header of a draft. Nil fields are kept.
type UpdateRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=200"`
	SupplierName *string    `json:"supplier_name" validate:"omitempty,max=200"`
	ReceiptDate  *time.Time `json:"receipt_date"`
}

// ReplaceLinesRequest swaps the full line set of a draft.
type ReplaceLinesRequest struct {
	Lines []LineRequest `json:"lines" validate:"dive"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	To Status `json:"to" validate:"required"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
