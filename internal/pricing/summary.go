package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind enumerates document-level discount types.
type DiscountKind string

const (
	DiscountNone       DiscountKind = "NONE"
	DiscountPercentage DiscountKind = "PERCENTAGE"
	DiscountAbsolute   DiscountKind = "ABSOLUTE"
)

// Discount is a document-level discount applied after line discounts.
type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// NoDiscount is the zero document discount.
var NoDiscount = Discount{Kind: DiscountNone}

// OrNone maps an unset kind to NoDiscount.
func (d Discount) OrNone() Discount {
	if d.Kind == "" {
		return NoDiscount
	}
	return d
}

// Validate checks kind and range.
func (d Discount) Validate() error {
	switch d.Kind {
	case "", DiscountNone:
		return nil
	case DiscountPercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(hundred) {
			return invalid("discount.value", "percentage must be between 0 and 100")
		}
		return nil
	case DiscountAbsolute:
		if d.Value.IsNegative() {
			return invalid("discount.value", "must not be negative")
		}
		return nil
	default:
		return invalid("discount.kind", fmt.Sprintf("unknown kind %q", d.Kind))
	}
}

// DownPayment is an amount already received against a document.
type DownPayment struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
}

// Line is one positioned line of a document.
type Line struct {
	Position    int    `json:"position"`
	Description string `json:"description"`
	LineInput
}

// VATGroup aggregates lines sharing the same tax rate.
type VATGroup struct {
	Rate decimal.Decimal `json:"rate"`
	Net  decimal.Decimal `json:"net"`
	Tax  decimal.Decimal `json:"tax"`
}

// Summary is a computed snapshot of a document's financials.
type Summary struct {
	Lines             []LineAmounts   `json:"lines"`
	TotalNet          decimal.Decimal `json:"total_net"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	NetAfterDiscount  decimal.Decimal `json:"net_after_discount"`
	VATGroups         []VATGroup      `json:"vat_groups"`
	TotalVAT          decimal.Decimal `json:"total_vat"`
	Gross             decimal.Decimal `json:"gross"`
	TotalDownPayments decimal.Decimal `json:"total_down_payments"`
	AmountDue         decimal.Decimal `json:"amount_due"`
	// DiscountExceedsNet flags a document discount larger than the line total.
	DiscountExceedsNet bool `json:"discount_exceeds_net"`
}

type groupAcc struct {
	rate decimal.Decimal
	net  decimal.Decimal
	tax  decimal.Decimal
}

// Summarize aggregates lines, document discount and down payments.
func Summarize(lines []Line, discount Discount, downPayments []DownPayment) (Summary, error) {
	if err := discount.Validate(); err != nil {
		return Summary{}, err
	}

	out := Summary{Lines: make([]LineAmounts, 0, len(lines))}
	totalNet := decimal.Zero
	groups := make([]*groupAcc, 0, 4)
	for i, line := range lines {
		amounts, err := CalculateLine(line.LineInput)
		if err != nil {
			if ve, ok := err.(*ValidationError); ok {
				return Summary{}, invalid(fmt.Sprintf("lines[%d].%s", i, ve.Field), ve.Reason)
			}
			return Summary{}, err
		}
		out.Lines = append(out.Lines, amounts)
		totalNet = totalNet.Add(amounts.Net)

		var acc *groupAcc
		for _, g := range groups {
			if g.rate.Equal(line.TaxRate) {
				acc = g
				break
			}
		}
		if acc == nil {
			acc = &groupAcc{rate: line.TaxRate}
			groups = append(groups, acc)
		}
		acc.net = acc.net.Add(amounts.Net)
		acc.tax = acc.tax.Add(amounts.Tax)
	}

	discountAmount := decimal.Zero
	switch discount.Kind {
	case DiscountPercentage:
		discountAmount = Round(totalNet.Mul(discount.Value).Div(hundred))
	case DiscountAbsolute:
		discountAmount = Round(discount.Value)
	}
	netAfter := totalNet.Sub(discountAmount)
	scaled := !discountAmount.IsZero()

	totalVAT := decimal.Zero
	out.VATGroups = make([]VATGroup, 0, len(groups))
	for _, g := range groups {
		net, tax := g.net, g.tax
		if scaled {
			net = scaleByNet(g.net, netAfter, totalNet)
			tax = scaleByNet(g.tax, netAfter, totalNet)
		}
		totalVAT = totalVAT.Add(tax)
		out.VATGroups = append(out.VATGroups, VATGroup{Rate: g.rate, Net: net, Tax: tax})
	}
	sort.SliceStable(out.VATGroups, func(i, j int) bool {
		return out.VATGroups[i].Rate.LessThan(out.VATGroups[j].Rate)
	})

	totalDown := decimal.Zero
	for i, dp := range downPayments {
		if dp.Amount.IsNegative() {
			return Summary{}, invalid(fmt.Sprintf("down_payments[%d].amount", i), "must not be negative")
		}
		totalDown = totalDown.Add(Round(dp.Amount))
	}

	out.TotalNet = totalNet
	out.DiscountAmount = discountAmount
	out.NetAfterDiscount = netAfter
	out.TotalVAT = totalVAT
	out.Gross = netAfter.Add(totalVAT)
	out.TotalDownPayments = totalDown
	out.AmountDue = out.Gross.Sub(totalDown)
	out.DiscountExceedsNet = discountAmount.GreaterThan(totalNet)
	return out, nil
}

// scaleByNet returns amount × netAfter / totalNet rounded, or zero when totalNet is zero.
func scaleByNet(amount, netAfter, totalNet decimal.Decimal) decimal.Decimal {
	if totalNet.IsZero() {
		return decimal.Zero
	}
	return Round(amount.Mul(netAfter).Div(totalNet))
}
