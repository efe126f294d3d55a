// Package customers keeps the customer master the document services read from.
package customers

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Customer is a billing party identified by a K-number.
type Customer struct {
	ID               int64     `json:"id"`
	PublicID         uuid.UUID `json:"public_id"`
	Number           string    `json:"number"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Street           string    `json:"street,omitempty"`
	PostalCode       string    `json:"postal_code,omitempty"`
	City             string    `json:"city,omitempty"`
	Country          string    `json:"country,omitempty"`
	PaymentTermsDays int       `json:"payment_terms_days"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Projection is the read-only view other modules get.
type Projection struct {
	ID               int64
	Number           string
	Name             string
	Address          string
	PaymentTermsDays int
}

// Project reduces c to its Projection.
func (c Customer) Project() Projection {
	var parts []string
	if c.Street != "" {
		parts = append(parts, c.Street)
	}
	if locality := strings.TrimSpace(c.PostalCode + " " + c.City); locality != "" {
		parts = append(parts, locality)
	}
	if c.Country != "" {
		parts = append(parts, c.Country)
	}
	return Projection{
		ID:               c.ID,
		Number:           c.Number,
		Name:             c.Name,
		Address:          strings.Join(parts, ", "),
		PaymentTermsDays: c.PaymentTermsDays,
	}
}

// CreateRequest is the payload for a new customer.
type CreateRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	Email            string `json:"email" validate:"omitempty,email"`
	Street           string `json:"street" validate:"max=200"`
	PostalCode       string `json:"postal_code" validate:"max=20"`
	City             string `json:"city" validate:"max=100"`
	Country          string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	PaymentTermsDays int    `json:"payment_terms_days" validate:"gte=0,lte=365"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}
