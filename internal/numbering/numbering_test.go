package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

var testNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func existing(numbers ...string) ExistingNumbers {
	return ExistingNumbersFunc(func(context.Context, string) ([]string, error) {
		return numbers, nil
	})
}

func TestFormatRender(t *testing.T) {
	cases := []struct {
		kind Kind
		n    int64
		want string
	}{
		{KindCustomer, 1, "K00001"},
		{KindCustomer, 100, "K00100"},
		{KindQuote, 1, "ANG-2026-00001"},
		{KindInvoice, 42, "RE-2026-0042"},
		{KindProject, 7, "PRJ-2026-0007"},
		{KindExpense, 12345, "BEL-2026-12345"},
	}
	for _, tc := range cases {
		f := DefaultFormats[tc.kind]
		got, err := f.Render(f.Scope(testNow), tc.n)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestParseSuffixIsNumeric(t *testing.T) {
	f := DefaultFormats[KindCustomer]
	n, ok := f.ParseSuffix("K", "K00099")
	require.True(t, ok)
	require.Equal(t, int64(99), n)

	_, ok = f.ParseSuffix("K", "X00001")
	require.False(t, ok)
	_, ok = f.ParseSuffix("K", "K00A01")
	require.False(t, ok)
	_, ok = f.ParseSuffix("K", "K")
	require.False(t, ok)

	q := DefaultFormats[KindQuote]
	n, ok = q.ParseSuffix("ANG-2026", "ANG-2026-00017")
	require.True(t, ok)
	require.Equal(t, int64(17), n)
	_, ok = q.ParseSuffix("ANG-2026", "ANG-2025-00017")
	require.False(t, ok)

	// Plain string ordering would put K991 above K00100 and K0009 above K00010.
	require.Equal(t, int64(991), f.HighestSuffix("K", []string{"K00099", "K00100", "K991"}))
	require.Equal(t, int64(100), f.HighestSuffix("K", []string{"K00099", "K00100", "K0009"}))
}

func TestCustomerNumberAfterK00099(t *testing.T) {
	numbers := make([]string, 0, 99)
	for i := 1; i <= 99; i++ {
		numbers = append(numbers, fmt.Sprintf("K%05d", i))
	}
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow), WithExisting(KindCustomer, existing(numbers...)))
	got, err := g.Next(context.Background(), KindCustomer)
	require.NoError(t, err)
	require.Equal(t, "K00100", got)
}

func TestSequentialCallsAreGapFreeAndIncreasing(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow))
	ctx := context.Background()
	f := DefaultFormats[KindQuote]
	var prev int64
	for i := 1; i <= 25; i++ {
		number, err := g.Next(ctx, KindQuote)
		require.NoError(t, err)
		n, ok := f.ParseSuffix("ANG-2026", number)
		require.True(t, ok, number)
		require.Equal(t, prev+1, n)
		prev = n
	}
}

func TestScopeResetsPerYear(t *testing.T) {
	clock := shared.NewFixedClock(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC))
	g := NewGenerator(NewMemoryStore(), clock)
	ctx := context.Background()

	first, err := g.Next(ctx, KindInvoice)
	require.NoError(t, err)
	require.Equal(t, "RE-2025-0001", first)
	second, err := g.Next(ctx, KindInvoice)
	require.NoError(t, err)
	require.Equal(t, "RE-2025-0002", second)

	clock.Set(time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC))
	third, err := g.Next(ctx, KindInvoice)
	require.NoError(t, err)
	require.Equal(t, "RE-2026-0001", third)
}

func TestFloorSkipsImportedNumbers(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow),
		WithExisting(KindQuote, existing("ANG-2026-00007", "ANG-2026-00012", "ANG-2025-00400", "garbage")))
	got, err := g.Next(context.Background(), KindQuote)
	require.NoError(t, err)
	require.Equal(t, "ANG-2026-00013", got)
}

func runConcurrent(t *testing.T, g *Generator, callers int) []string {
	t.Helper()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make([]string, 0, callers)
		errs    = make([]error, 0)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := g.Next(context.Background(), KindCustomer)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, n)
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	return numbers
}

func requireUnique(t *testing.T, numbers []string) {
	t.Helper()
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		_, dup := seen[n]
		require.False(t, dup, "duplicate number %s", n)
		seen[n] = struct{}{}
	}
}

func TestConcurrentCallersNeverShareANumber(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow))
	numbers := runConcurrent(t, g, 64)
	require.Len(t, numbers, 64)
	requireUnique(t, numbers)
	require.Equal(t, int64(64), DefaultFormats[KindCustomer].HighestSuffix("K", numbers))
}

func TestRedisStoreConcurrentAllocation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	g := NewGenerator(NewRedisStore(client), shared.NewFixedClock(testNow),
		WithExisting(KindCustomer, existing("K00041")))
	numbers := runConcurrent(t, g, 32)
	requireUnique(t, numbers)
	require.Equal(t, int64(73), DefaultFormats[KindCustomer].HighestSuffix("K", numbers))

	next, err := g.Next(context.Background(), KindCustomer)
	require.NoError(t, err)
	require.Equal(t, "K00074", next)
}

type conflictingStore struct {
	calls     int
	failFirst int
}

func (s *conflictingStore) Allocate(_ context.Context, _ string, floor int64) (int64, error) {
	s.calls++
	if s.failFirst < 0 || s.calls <= s.failFirst {
		return 0, ErrConflict
	}
	return floor + 1, nil
}

func TestRetriesConflictsThenSucceeds(t *testing.T) {
	store := &conflictingStore{failFirst: 2}
	g := NewGenerator(store, shared.NewFixedClock(testNow))
	got, err := g.Next(context.Background(), KindCustomer)
	require.NoError(t, err)
	require.Equal(t, "K00001", got)
	require.Equal(t, 3, store.calls)
}

func TestExhaustedAfterBoundedRetries(t *testing.T) {
	store := &conflictingStore{failFirst: -1}
	g := NewGenerator(store, shared.NewFixedClock(testNow), WithMaxAttempts(4))
	_, err := g.Next(context.Background(), KindCustomer)
	require.ErrorIs(t, err, shared.ErrSequenceExhausted)
	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Equal(t, 4, ex.Attempts)
	require.Equal(t, 4, store.calls)
}

func TestWidthOverflowIsExhaustion(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow),
		WithFormat(KindInvoice, Format{Prefix: "RE", Yearly: true, Width: 1, Separator: "-"}))
	ctx := context.Background()
	for i := 1; i <= 9; i++ {
		_, err := g.Next(ctx, KindInvoice)
		require.NoError(t, err)
	}
	_, err := g.Next(ctx, KindInvoice)
	require.ErrorIs(t, err, shared.ErrSequenceExhausted)
}

func TestUnknownKind(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow))
	_, err := g.Next(context.Background(), Kind("pallet"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIssueRereadsFloorAfterNumberTaken(t *testing.T) {
	stored := []string{}
	lookups := 0
	src := ExistingNumbersFunc(func(context.Context, string) ([]string, error) {
		lookups++
		return stored, nil
	})
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow), WithExisting(KindInvoice, src))
	ctx := context.Background()
	insert := func(_ context.Context, number string) error {
		for _, n := range stored {
			if n == number {
				return fmt.Errorf("invoice %s: %w", number, ErrNumberTaken)
			}
		}
		stored = append(stored, number)
		return nil
	}

	first, err := g.Issue(ctx, KindInvoice, insert)
	require.NoError(t, err)
	require.Equal(t, "RE-2026-0001", first)

	stored = append(stored, "RE-2026-0002", "RE-2026-0005")
	next, err := g.Issue(ctx, KindInvoice, insert)
	require.NoError(t, err)
	require.Equal(t, "RE-2026-0006", next)
	require.Equal(t, 2, lookups)
}

func TestIssuePassesOtherErrorsThrough(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow))
	boom := errors.New("connection reset")
	calls := 0
	_, err := g.Issue(context.Background(), KindQuote, func(context.Context, string) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestIssueExhaustsWhenEveryNumberIsTaken(t *testing.T) {
	g := NewGenerator(NewMemoryStore(), shared.NewFixedClock(testNow), WithMaxAttempts(3))
	var tried []string
	_, err := g.Issue(context.Background(), KindCustomer, func(_ context.Context, number string) error {
		tried = append(tried, number)
		return ErrNumberTaken
	})
	require.ErrorIs(t, err, shared.ErrSequenceExhausted)
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	require.Equal(t, 3, ex.Attempts)
	require.Equal(t, []string{"K00001", "K00002", "K00003"}, tried)
}

func TestNumberTakenMapsToSequenceExhausted(t *testing.T) {
	require.ErrorIs(t, fmt.Errorf("quote ANG-2026-00001: %w", ErrNumberTaken), shared.ErrSequenceExhausted)
}
