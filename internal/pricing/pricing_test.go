package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal, msg ...any) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2), msg...)
}

func quoteLines() []Line {
	return []Line{
		{Position: 1, Description: "Beratung", LineInput: LineInput{Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("19")}},
		{Position: 2, Description: "Buch", LineInput: LineInput{Quantity: dec("1"), UnitPrice: dec("50"), TaxRate: dec("7")}},
		{Position: 3, Description: "Material", LineInput: LineInput{Quantity: dec("5"), UnitPrice: dec("10"), TaxRate: dec("19")}},
	}
}

func TestCalculateLineBasic(t *testing.T) {
	got, err := CalculateLine(LineInput{Quantity: dec("3"), UnitPrice: dec("19.99"), TaxRate: dec("19")})
	require.NoError(t, err)
	requireMoney(t, "59.97", got.Net)
	requireMoney(t, "11.39", got.Tax)
	requireMoney(t, "71.36", got.Gross)
}

func TestCalculateLineWithDiscount(t *testing.T) {
	got, err := CalculateLine(LineInput{Quantity: dec("1"), UnitPrice: dec("200"), TaxRate: dec("8.1"), DiscountPercent: dec("12.5")})
	require.NoError(t, err)
	requireMoney(t, "200.00", got.Base)
	requireMoney(t, "25.00", got.Discount)
	requireMoney(t, "175.00", got.Net)
	requireMoney(t, "14.18", got.Tax)
	requireMoney(t, "189.18", got.Gross)
}

func TestCalculateLineZeroQuantity(t *testing.T) {
	got, err := CalculateLine(LineInput{Quantity: decimal.Zero, UnitPrice: dec("99.95"), TaxRate: dec("19"), DiscountPercent: dec("10")})
	require.NoError(t, err)
	assert.True(t, got.Net.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Gross.IsZero())
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	requireMoney(t, "0.13", Round(dec("0.125")))
	requireMoney(t, "-0.13", Round(dec("-0.125")))
	requireMoney(t, "2.68", Round(dec("2.675")))
	requireMoney(t, "0.12", Round(dec("0.1249")))
}

func TestCalculateLineRoundsBaseBeforeTax(t *testing.T) {
	// 0.5 × 0.25 = 0.125 rounds to 0.13, banker's rounding would give 0.12.
	got, err := CalculateLine(LineInput{Quantity: dec("0.5"), UnitPrice: dec("0.25"), TaxRate: dec("0")})
	require.NoError(t, err)
	requireMoney(t, "0.13", got.Net)
}

func TestCalculateLineValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    LineInput
		field string
	}{
		{"negative price", LineInput{Quantity: dec("1"), UnitPrice: dec("-1"), TaxRate: dec("19")}, "unit_price"},
		{"negative quantity", LineInput{Quantity: dec("-1"), UnitPrice: dec("1"), TaxRate: dec("19")}, "quantity"},
		{"tax above 100", LineInput{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: dec("100.01")}, "tax_rate"},
		{"tax below 0", LineInput{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: dec("-7")}, "tax_rate"},
		{"discount above 100", LineInput{Quantity: dec("1"), UnitPrice: dec("1"), TaxRate: dec("7"), DiscountPercent: dec("101")}, "discount_percent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CalculateLine(tc.in)
			require.Error(t, err)
			require.True(t, errors.Is(err, shared.ErrValidation))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestRoundingLawNetPlusTaxEqualsGross(t *testing.T) {
	quantities := []string{"0", "0.333", "1", "1.5", "7", "12.75", "1000"}
	prices := []string{"0", "0.01", "0.05", "1.99", "19.95", "333.33", "1234.567"}
	rates := []string{"0", "2.5", "7", "7.7", "8.1", "19", "20"}
	discounts := []string{"0", "3", "12.5", "33.333"}
	for _, q := range quantities {
		for _, p := range prices {
			for _, r := range rates {
				for _, d := range discounts {
					got, err := CalculateLine(LineInput{Quantity: dec(q), UnitPrice: dec(p), TaxRate: dec(r), DiscountPercent: dec(d)})
					require.NoError(t, err)
					require.True(t, got.Net.Add(got.Tax).Equal(got.Gross), "q=%s p=%s r=%s d=%s", q, p, r, d)
					require.LessOrEqual(t, got.Gross.Exponent()*-1, int32(Places))
				}
			}
		}
	}
}

func TestSummarizeScenarioNoDiscount(t *testing.T) {
	sum, err := Summarize(quoteLines(), NoDiscount, nil)
	require.NoError(t, err)
	requireMoney(t, "300.00", sum.TotalNet)
	requireMoney(t, "0.00", sum.DiscountAmount)
	require.Len(t, sum.VATGroups, 2)
	requireMoney(t, "7.00", sum.VATGroups[0].Rate)
	requireMoney(t, "3.50", sum.VATGroups[0].Tax)
	requireMoney(t, "19.00", sum.VATGroups[1].Rate)
	requireMoney(t, "47.50", sum.VATGroups[1].Tax)
	requireMoney(t, "250.00", sum.VATGroups[1].Net)
	requireMoney(t, "51.00", sum.TotalVAT)
	requireMoney(t, "351.00", sum.Gross)
	requireMoney(t, "351.00", sum.AmountDue)
	assert.False(t, sum.DiscountExceedsNet)
}

func TestSummarizeScenarioPercentageDiscount(t *testing.T) {
	sum, err := Summarize(quoteLines(), Discount{Kind: DiscountPercentage, Value: dec("10")}, nil)
	require.NoError(t, err)
	requireMoney(t, "30.00", sum.DiscountAmount)
	requireMoney(t, "270.00", sum.NetAfterDiscount)
	requireMoney(t, "3.15", sum.VATGroups[0].Tax)
	requireMoney(t, "42.75", sum.VATGroups[1].Tax)
	requireMoney(t, "45.90", sum.TotalVAT)
	requireMoney(t, "315.90", sum.Gross)
}

func TestSummarizeAbsoluteDiscountAndDownPayments(t *testing.T) {
	sum, err := Summarize(quoteLines(), Discount{Kind: DiscountAbsolute, Value: dec("60")}, []DownPayment{
		{Description: "Anzahlung 1", Amount: dec("100")},
		{Description: "Anzahlung 2", Amount: dec("50.5")},
	})
	require.NoError(t, err)
	requireMoney(t, "240.00", sum.NetAfterDiscount)
	// 47.5 × 0.8 = 38, 3.5 × 0.8 = 2.8
	requireMoney(t, "40.80", sum.TotalVAT)
	requireMoney(t, "280.80", sum.Gross)
	requireMoney(t, "150.50", sum.TotalDownPayments)
	requireMoney(t, "130.30", sum.AmountDue)
	require.True(t, sum.AmountDue.Equal(sum.Gross.Sub(sum.TotalDownPayments)))
}

func TestSummarizeDiscountExceedingNetIsFlagged(t *testing.T) {
	sum, err := Summarize(quoteLines(), Discount{Kind: DiscountAbsolute, Value: dec("400")}, nil)
	require.NoError(t, err)
	require.True(t, sum.DiscountExceedsNet)
	requireMoney(t, "-100.00", sum.NetAfterDiscount)
	require.True(t, sum.Gross.IsNegative())
}

func TestSummarizeEmptyDocumentWithDiscount(t *testing.T) {
	sum, err := Summarize(nil, Discount{Kind: DiscountPercentage, Value: dec("10")}, nil)
	require.NoError(t, err)
	assert.True(t, sum.TotalNet.IsZero())
	assert.True(t, sum.TotalVAT.IsZero())
	assert.True(t, sum.Gross.IsZero())
	assert.Empty(t, sum.VATGroups)
}

func TestSummarizeIsDeterministicAndDoesNotMutate(t *testing.T) {
	lines := quoteLines()
	before := make([]Line, len(lines))
	copy(before, lines)
	discount := Discount{Kind: DiscountPercentage, Value: dec("7.5")}
	first, err := Summarize(lines, discount, []DownPayment{{Amount: dec("10")}})
	require.NoError(t, err)
	second, err := Summarize(lines, discount, []DownPayment{{Amount: dec("10")}})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, before, lines)
}

func TestSummarizeValidation(t *testing.T) {
	_, err := Summarize(quoteLines(), Discount{Kind: "BOGUS"}, nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Summarize(quoteLines(), Discount{Kind: DiscountPercentage, Value: dec("150")}, nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Summarize(quoteLines(), NoDiscount, []DownPayment{{Amount: dec("-1")}})
	require.ErrorIs(t, err, shared.ErrValidation)

	bad := quoteLines()
	bad[1].UnitPrice = dec("-5")
	_, err = Summarize(bad, NoDiscount, nil)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "lines[1].unit_price", ve.Field)
}

func TestValidateText(t *testing.T) {
	require.NoError(t, ValidateText("description", "Beratung"))
	require.ErrorIs(t, ValidateText("description", "   "), shared.ErrValidation)
}

func TestNormalizeCurrency(t *testing.T) {
	got, err := NormalizeCurrency(" chf ")
	require.NoError(t, err)
	require.Equal(t, "CHF", got)

	_, err = NormalizeCurrency("XYZW")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCheckLineKeysFieldByIndex(t *testing.T) {
	require.NoError(t, CheckLine(0, "Consulting", LineInput{Quantity: dec("1"), UnitPrice: dec("10")}))

	err := CheckLine(2, "Consulting", LineInput{Quantity: dec("-1"), UnitPrice: dec("10")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "lines[2].quantity", ve.Field)

	err = CheckLine(1, " ", LineInput{})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "lines[1].description", ve.Field)
}

func TestParseLinesNumbersAndTrims(t *testing.T) {
	lines, err := ParseLines([]LineRequest{
		{Description: "  Beratung ", Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("19")},
		{Description: "Buch", Quantity: dec("1"), UnitPrice: dec("50"), TaxRate: dec("7"), DiscountPercent: dec("10")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Position)
	assert.Equal(t, "Beratung", lines[0].Description)
	assert.Equal(t, 2, lines[1].Position)
	assert.True(t, lines[1].DiscountPercent.Equal(dec("10")))

	_, err = ParseLines([]LineRequest{
		{Description: "ok", Quantity: dec("1")},
		{Description: "bad", Quantity: dec("1"), TaxRate: dec("101")},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "lines[1].tax_rate", ve.Field)

	empty, err := ParseLines(nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDiscountOrNone(t *testing.T) {
	require.Equal(t, NoDiscount, Discount{}.OrNone())
	pct := Discount{Kind: DiscountPercentage, Value: dec("5")}
	require.Equal(t, pct, pct.OrNone())
}

func TestResolveCurrencyFallsBackWhenBlank(t *testing.T) {
	got, err := ResolveCurrency("  ", "chf")
	require.NoError(t, err)
	require.Equal(t, "CHF", got)

	got, err = ResolveCurrency("eur", "CHF")
	require.NoError(t, err)
	require.Equal(t, "EUR", got)

	_, err = ResolveCurrency("", "")
	require.ErrorIs(t, err, shared.ErrValidation)
}
