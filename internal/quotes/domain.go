// Package quotes manages offers sent to customers and their validity window.
package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
)

// Status enumerates quote states.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Quote is an offer with a validity window.
type Quote struct {
	ID         int64            `json:"id"`
	Number     string           `json:"number"`
	CustomerID int64            `json:"customer_id"`
	Title      string           `json:"title"`
	Currency   string           `json:"currency"`
	Status     Status           `json:"status"`
	IssueDate  time.Time        `json:"issue_date"`
	ValidUntil time.Time        `json:"valid_until"`
	Discount   pricing.Discount `json:"discount"`
	Notes      string           `json:"notes,omitempty"`
	Lines      []Line           `json:"lines"`
	InvoiceID  *int64           `json:"invoice_id,omitempty"`
	Version    int64            `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	SentAt     *time.Time       `json:"sent_at,omitempty"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
	RejectedAt *time.Time       `json:"rejected_at,omitempty"`
	ExpiredAt  *time.Time       `json:"expired_at,omitempty"`
}

// Line is a positioned quote line.
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
func (q Quote) PricingLines() []pricing.Line {
	out := make([]pricing.Line, 0, len(q.Lines))
	for _, l := range q.Lines {
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

// CreateRequest is the payload for a new quote.
type CreateRequest struct {
	CustomerID int64            `json:"customer_id" validate:"required,gt=0"`
	Title      string           `json:"title" validate:"required,max=200"`
	Currency   string           `json:"currency" validate:"omitempty,len=3"`
	IssueDate  time.Time        `json:"issue_date"`
	ValidUntil time.Time        `json:"valid_until"`
	Discount   pricing.Discount `json:"discount"`
	Notes      string           `json:"notes" validate:"max=2000"`
	Lines      []LineRequest    `json:"lines" validate:"dive"`
}

// ReplaceLinesRequest swaps the full line set of a draft.
type ReplaceLinesRequest struct {
	Lines    []LineRequest     `json:"lines" validate:"dive"`
	Discount *pricing.Discount `json:"discount,omitempty"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	To Status `json:"to" validate:"required"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status     Status
	CustomerID int64
	Limit      int
	Offset     int
}
