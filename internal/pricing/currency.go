package pricing

import (
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency upper-cases code and checks it is a known ISO 4217 unit.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", invalid("currency", "must be an ISO 4217 code")
	}
	return unit.String(), nil
}

// ResolveCurrency normalizes code, falling back to fallback when code is blank.
func ResolveCurrency(code, fallback string) (string, error) {
	if strings.TrimSpace(code) == "" {
		code = fallback
	}
	return NormalizeCurrency(code)
}
