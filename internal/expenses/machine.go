package expenses

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Machine is the expense document lifecycle.
var Machine = lifecycle.MustNew(lifecycle.Definition[Status, Document]{
	Name:     "expense",
	Initial:  StatusDraft,
	States:   []Status{StatusDraft, StatusBooked, StatusPaid},
	Terminal: []Status{StatusPaid},
	Edges: []lifecycle.Edge[Status, Document]{
		{From: StatusDraft, To: StatusBooked, Action: "book", Guard: bookable, Stamp: func(d *Document, now time.Time) { d.BookedAt = &now }},
		{From: StatusBooked, To: StatusPaid, Action: "pay", Stamp: func(d *Document, now time.Time) { d.PaidAt = &now }},
	},
	StatusOf:  func(d Document) Status { return d.Status },
	SetStatus: func(d *Document, s Status) { d.Status = s },
})

func bookable(d Document, now time.Time) error {
	if len(d.Lines) == 0 {
		return errors.New("expense document has no line items")
	}
	if d.ReceiptDate == nil {
		return errors.New("receipt date missing")
	}
	if shared.DateOnly(*d.ReceiptDate).After(shared.DateOnly(now)) {
		return fmt.Errorf("receipt date %s lies in the future", d.ReceiptDate.Format(time.DateOnly))
	}
	return nil
}
