// Package invoices manages customer invoices, their down payments and the
// overdue reconciliation.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
)

// Status enumerates invoice states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusOverdue   Status = "OVERDUE"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// Invoice is a bill sent to a customer.
type Invoice struct {
	ID           int64            `json:"id"`
	Number       string           `json:"number"`
	CustomerID   int64            `json:"customer_id"`
	QuoteID      *int64           `json:"quote_id,omitempty"`
	QuoteNumber  string           `json:"quote_number,omitempty"`
	Title        string           `json:"title"`
	Currency     string           `json:"currency"`
	Status       Status           `json:"status"`
	IssueDate    time.Time        `json:"issue_date"`
	DueDate      time.Time        `json:"due_date"`
	Discount     pricing.Discount `json:"discount"`
	Notes        string           `json:"notes,omitempty"`
	Lines        []Line           `json:"lines"`
	DownPayments []DownPayment    `json:"down_payments"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	SentAt       *time.Time       `json:"sent_at,omitempty"`
	OverdueAt    *time.Time       `json:"overdue_at,omitempty"`
	PaidAt       *time.Time       `json:"paid_at,omitempty"`
	CancelledAt  *time.Time       `json:"cancelled_at,omitempty"`
}

// Line is a positioned invoice line.
type Line struct {
	ID              int64           `json:"id"`
	Position        int             `json:"position"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// DownPayment is an amount received before the final settlement.
type DownPayment struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// PricingLines converts stored lines to calculator input.
func (inv Invoice) PricingLines() []pricing.Line {
	out := make([]pricing.Line, 0, len(inv.Lines))
	for _, l := range inv.Lines {
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

// PricingDownPayments converts stored down payments to calculator input.
func (inv Invoice) PricingDownPayments() []pricing.DownPayment {
	out := make([]pricing.DownPayment, 0, len(inv.DownPayments))
	for _, dp := range inv.DownPayments {
		at := dp.ReceivedAt
		out = append(out, pricing.DownPayment{Description: dp.Description, Amount: dp.Amount, PaidAt: &at})
	}
	return out
}

// LineRequest is one line in a create or replace payload.
type LineRequest = pricing.LineRequest

// CreateRequest is the payload for a new invoice.
type CreateRequest struct {
	CustomerID int64            `json:"customer_id" validate:"required,gt=0"`
	Title      string           `json:"title" validate:"required,max=200"`
	Currency   string           `json:"currency" validate:"omitempty,len=3"`
	IssueDate  time.Time        `json:"issue_date"`
	DueDate    time.Time        `json:"due_date"`
	Discount   pricing.Discount `json:"discount"`
	Notes      string           `json:"notes" validate:"max=2000"`
	Lines      []LineRequest    `json:"lines" validate:"dive"`
}

// QuoteDraft carries an accepted quote into a new draft invoice.
type QuoteDraft struct {
	QuoteID     int64
	QuoteNumber string
	CustomerID  int64
	Title       string
	Currency    string
	Discount    pricing.Discount
	Lines       []LineRequest
}

// ReplaceLinesRequest swaps the full line set of a draft.
type ReplaceLinesRequest struct {
	Lines    []LineRequest     `json:"lines" validate:"dive"`
	Discount *pricing.Discount `json:"discount,omitempty"`
}

// DownPaymentRequest records a received down payment.
type DownPaymentRequest struct {
	Description string          `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"amount"`
	ReceivedAt  time.Time       `json:"received_at"`
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
