package invoices

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Machine is the invoice lifecycle.
var Machine = lifecycle.MustNew(lifecycle.Definition[Status, Invoice]{
	Name:     "invoice",
	Initial:  StatusDraft,
	States:   []Status{StatusDraft, StatusSent, StatusOverdue, StatusPaid, StatusCancelled},
	Terminal: []Status{StatusPaid, StatusCancelled},
	Edges: []lifecycle.Edge[Status, Invoice]{
		{From: StatusDraft, To: StatusSent, Action: "send", Guard: hasLines, Stamp: func(inv *Invoice, now time.Time) { inv.SentAt = &now }},
		{From: StatusSent, To: StatusPaid, Action: "mark_paid", Stamp: stampPaid},
		{From: StatusSent, To: StatusOverdue, Action: "mark_overdue", Guard: pastDue, Stamp: func(inv *Invoice, now time.Time) { inv.OverdueAt = &now }},
		{From: StatusSent, To: StatusCancelled, Action: "cancel", Stamp: stampCancelled},
		{From: StatusOverdue, To: StatusPaid, Action: "mark_paid", Stamp: stampPaid},
		{From: StatusOverdue, To: StatusCancelled, Action: "cancel", Stamp: stampCancelled},
	},
	StatusOf:  func(inv Invoice) Status { return inv.Status },
	SetStatus: func(inv *Invoice, s Status) { inv.Status = s },
})

func stampPaid(inv *Invoice, now time.Time)      { inv.PaidAt = &now }
func stampCancelled(inv *Invoice, now time.Time) { inv.CancelledAt = &now }

func hasLines(inv Invoice, _ time.Time) error {
	if len(inv.Lines) == 0 {
		return errors.New("invoice has no line items")
	}
	return nil
}

func pastDue(inv Invoice, now time.Time) error {
	if !shared.DateOnly(now).After(shared.DateOnly(inv.DueDate)) {
		return fmt.Errorf("due date %s has not passed", inv.DueDate.Format(time.DateOnly))
	}
	return nil
}
