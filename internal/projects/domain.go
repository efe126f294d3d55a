// Package projects tracks customer engagements from draft to archive.
package projects

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates project states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
)

// Project is a piece of work carried out for a customer.
type Project struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	CustomerID  *int64          `json:"customer_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Budget      decimal.Decimal `json:"budget"`
	Currency    string          `json:"currency"`
	Status      Status          `json:"status"`
	StartDate   *time.Time      `json:"start_date,omitempty"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ActivatedAt *time.Time      `json:"activated_at,omitempty"`
	PausedAt    *time.Time      `json:"paused_at,omitempty"`
	ResumedAt   *time.Time      `json:"resumed_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	ArchivedAt  *time.Time      `json:"archived_at,omitempty"`
}

// CreateRequest is the payload for a new project.
type CreateRequest struct {
	CustomerID  *int64          `json:"customer_id" validate:"omitempty,gt=0"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Budget      decimal.Decimal `json:"budget"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
}

// UpdateRequest changes the editable fields of a draft. Nil fields are kept.
type UpdateRequest struct {
	CustomerID  *int64           `json:"customer_id" validate:"omitempty,gt=0"`
	Name        *string          `json:"name" validate:"omitempty,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Budget      *decimal.Decimal `json:"budget"`
	StartDate   *time.Time       `json:"start_date"`
	EndDate     *time.Time       `json:"end_date"`
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
