package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
)

func largeDocument(n int) []pricing.Line {
	rates := []string{"0", "2.6", "8.1", "19"}
	lines := make([]pricing.Line, n)
	for i := range lines {
		lines[i] = pricing.Line{
			Position:    i + 1,
			Description: fmt.Sprintf("Position %d", i+1),
			LineInput: pricing.LineInput{
				Quantity:        decimal.NewFromInt(int64(i%7 + 1)),
				UnitPrice:       decimal.RequireFromString("19.95"),
				TaxRate:         decimal.RequireFromString(rates[i%len(rates)]),
				DiscountPercent: decimal.NewFromInt(int64(i % 3 * 5)),
			},
		}
	}
	return lines
}

func TestSummaryLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		lines     int
		threshold time.Duration
	}{
		{name: "typical", lines: 20, threshold: 20 * time.Millisecond},
		{name: "large", lines: 1000, threshold: 250 * time.Millisecond},
	}

	discount := pricing.Discount{Kind: pricing.DiscountPercentage, Value: decimal.NewFromInt(5)}
	for _, scenario := range scenarios {
		lines := largeDocument(scenario.lines)
		samples := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			start := time.Now()
			if _, err := pricing.Summarize(lines, discount, nil); err != nil {
				t.Fatalf("%s: summarize: %v", scenario.name, err)
			}
			samples = append(samples, time.Since(start))
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkSummarize(b *testing.B) {
	lines := largeDocument(200)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := pricing.Summarize(lines, pricing.NoDiscount, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
