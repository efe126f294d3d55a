// Package pricing computes line-item and document totals with fixed-point
// decimals rounded half away from zero to two places.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the monetary precision.
const Places = 2

var hundred = decimal.NewFromInt(100)

// LineInput holds the stored inputs of one priced row.
type LineInput struct {
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// LineAmounts is derived from a LineInput and never persisted.
type LineAmounts struct {
	Base     decimal.Decimal `json:"base"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"net"`
	Tax      decimal.Decimal `json:"tax"`
	Gross    decimal.Decimal `json:"gross"`
}

// Round rounds to Places using half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Validate checks the input ranges without computing anything.
func (in LineInput) Validate() error {
	if in.Quantity.IsNegative() {
		return invalid("quantity", "must not be negative")
	}
	if in.UnitPrice.IsNegative() {
		return invalid("unit_price", "must not be negative")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred) {
		return invalid("tax_rate", "must be between 0 and 100")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return invalid("discount_percent", "must be between 0 and 100")
	}
	return nil
}

// CalculateLine returns net, tax and gross for a single line.
func CalculateLine(in LineInput) (LineAmounts, error) {
	if err := in.Validate(); err != nil {
		return LineAmounts{}, err
	}
	base := Round(in.Quantity.Mul(in.UnitPrice))
	discount := decimal.Zero
	if in.DiscountPercent.IsPositive() {
		discount = Round(base.Mul(in.DiscountPercent).Div(hundred))
	}
	net := base.Sub(discount)
	tax := Round(net.Mul(in.TaxRate).Div(hundred))
	return LineAmounts{
		Base:     base,
		Discount: discount,
		Net:      net,
		Tax:      tax,
		Gross:    net.Add(tax),
	}, nil
}

// ValidateText rejects empty required text.
func ValidateText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

// CheckLine validates the i-th line of a document payload. Field names in
// the returned error are keyed as lines[i].field.
func CheckLine(i int, description string, in LineInput) error {
	field := fmt.Sprintf("lines[%d]", i)
	if err := ValidateText(field+".description", description); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			return invalid(field+"."+ve.Field, ve.Reason)
		}
		return err
	}
	return nil
}

// LineRequest is one line of a create or replace payload, shared by every
// document kind.
type LineRequest struct {
	Description     string          `json:"description" validate:"required,max=500"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// Input returns the priced inputs of r.
func (r LineRequest) Input() LineInput {
	return LineInput{
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
		TaxRate:         r.TaxRate,
		DiscountPercent: r.DiscountPercent,
	}
}

// ParseLines checks every request with CheckLine and numbers the result from
// 1 in payload order. Descriptions are trimmed.
func ParseLines(reqs []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(reqs))
	for i, r := range reqs {
		in := r.Input()
		if err := CheckLine(i, r.Description, in); err != nil {
			return nil, err
		}
		lines = append(lines, Line{
			Position:    i + 1,
			Description: strings.TrimSpace(r.Description),
			LineInput:   in,
		})
	}
	return lines, nil
}
