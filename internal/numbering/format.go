// Package numbering issues human-readable, per-scope monotonic document
// numbers such as K00042 or ANG-2026-00017.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind names an entity type that carries a number.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindQuote    Kind = "quote"
	KindInvoice  Kind = "invoice"
	KindProject  Kind = "project"
	KindExpense  Kind = "expense"
)

// Format describes how numbers of one kind are scoped and rendered.
type Format struct {
	Prefix    string
	Yearly    bool
	Width     int
	Separator string
}

// DefaultFormats are the formats used when none are configured.
var DefaultFormats = map[Kind]Format{
	KindCustomer: {Prefix: "K", Width: 5},
	KindQuote:    {Prefix: "ANG", Yearly: true, Width: 5, Separator: "-"},
	KindInvoice:  {Prefix: "RE", Yearly: true, Width: 4, Separator: "-"},
	KindProject:  {Prefix: "PRJ", Yearly: true, Width: 4, Separator: "-"},
	KindExpense:  {Prefix: "BEL", Yearly: true, Width: 5, Separator: "-"},
}

// Scope returns the partition a number issued at at belongs to.
func (f Format) Scope(at time.Time) string {
	if !f.Yearly {
		return f.Prefix
	}
	return f.Prefix + f.Separator + strconv.Itoa(at.Year())
}

// Max is the largest suffix that fits Width.
func (f Format) Max() int64 {
	max := int64(1)
	for i := 0; i < f.Width; i++ {
		max *= 10
	}
	return max - 1
}

// Render formats suffix n inside scope, zero padded to Width.
func (f Format) Render(scope string, n int64) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("numbering: suffix must be positive, got %d", n)
	}
	if n > f.Max() {
		return "", &ExhaustedError{Scope: scope, Last: n, Reason: fmt.Sprintf("suffix exceeds %d digits", f.Width)}
	}
	return fmt.Sprintf("%s%s%0*d", scope, f.suffixSeparator(), f.Width, n), nil
}

func (f Format) suffixSeparator() string {
	if f.Yearly {
		return f.Separator
	}
	return ""
}

// ParseSuffix extracts the numeric suffix of number within scope. It parses
// digits instead of comparing strings, so K00099 < K00100 and K991 is not
// mistaken for a larger number.
func (f Format) ParseSuffix(scope, number string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, scope+f.suffixSeparator())
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// HighestSuffix returns the largest numeric suffix among numbers in scope, or 0.
func (f Format) HighestSuffix(scope string, numbers []string) int64 {
	var highest int64
	for _, number := range numbers {
		if n, ok := f.ParseSuffix(scope, number); ok && n > highest {
			highest = n
		}
	}
	return highest
}
