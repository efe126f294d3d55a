package quotes

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Machine is the quote lifecycle.
var Machine = lifecycle.MustNew(lifecycle.Definition[Status, Quote]{
	Name:     "quote",
	Initial:  StatusDraft,
	States:   []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired},
	Terminal: []Status{StatusAccepted, StatusRejected, StatusExpired},
	Edges: []lifecycle.Edge[Status, Quote]{
		{From: StatusDraft, To: StatusSent, Action: "send", Stamp: func(q *Quote, now time.Time) { q.SentAt = &now }},
		{From: StatusSent, To: StatusAccepted, Action: "accept", Guard: withinValidity, Stamp: func(q *Quote, now time.Time) { q.AcceptedAt = &now }},
		{From: StatusSent, To: StatusRejected, Action: "reject", Stamp: func(q *Quote, now time.Time) { q.RejectedAt = &now }},
		{From: StatusSent, To: StatusExpired, Action: "expire", Guard: validityElapsed, Stamp: func(q *Quote, now time.Time) { q.ExpiredAt = &now }},
	},
	StatusOf:  func(q Quote) Status { return q.Status },
	SetStatus: func(q *Quote, s Status) { q.Status = s },
})

func withinValidity(q Quote, now time.Time) error {
	if shared.DateOnly(now).After(shared.DateOnly(q.ValidUntil)) {
		return fmt.Errorf("validity window elapsed on %s", q.ValidUntil.Format(time.DateOnly))
	}
	return nil
}

func validityElapsed(q Quote, now time.Time) error {
	if !shared.DateOnly(now).After(shared.DateOnly(q.ValidUntil)) {
		return fmt.Errorf("still valid until %s", q.ValidUntil.Format(time.DateOnly))
	}
	return nil
}
