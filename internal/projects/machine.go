package projects

import (
	"errors"
	"time"

	"github.com/odyssey-erp/backoffice/internal/lifecycle"
)

// Machine is the project lifecycle. ACTIVE and PAUSED may alternate any
// number of times; each pass restamps PausedAt or ResumedAt.
var Machine = lifecycle.MustNew(lifecycle.Definition[Status, Project]{
	Name:     "project",
	Initial:  StatusDraft,
	States:   []Status{StatusDraft, StatusActive, StatusPaused, StatusCompleted, StatusArchived},
	Terminal: []Status{StatusArchived},
	Edges: []lifecycle.Edge[Status, Project]{
		{From: StatusDraft, To: StatusActive, Action: "activate", Guard: customerAssigned, Stamp: func(p *Project, now time.Time) { p.ActivatedAt = &now }},
		{From: StatusActive, To: StatusPaused, Action: "pause", Stamp: func(p *Project, now time.Time) { p.PausedAt = &now }},
		{From: StatusPaused, To: StatusActive, Action: "resume", Stamp: func(p *Project, now time.Time) { p.ResumedAt = &now }},
		{From: StatusActive, To: StatusCompleted, Action: "complete", Stamp: func(p *Project, now time.Time) { p.CompletedAt = &now }},
		{From: StatusCompleted, To: StatusArchived, Action: "archive", Stamp: func(p *Project, now time.Time) { p.ArchivedAt = &now }},
	},
	StatusOf:  func(p Project) Status { return p.Status },
	SetStatus: func(p *Project, s Status) { p.Status = s },
})

func customerAssigned(p Project, _ time.Time) error {
	if p.CustomerID == nil {
		return errors.New("no customer assigned")
	}
	return nil
}
