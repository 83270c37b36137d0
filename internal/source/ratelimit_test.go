package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacing(t *testing.T) {
	t.Parallel()

	const delay = 30 * time.Millisecond
	l := NewLimiter(delay)
	defer l.Close()

	ctx := context.Background()
	var grants []time.Time
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Wait(ctx))
		grants = append(grants, time.Now())
	}

	// A little slack for clock sampling; the limiter itself spaces grants
	// by at least the full delay.
	const slack = 5 * time.Millisecond
	for i := 1; i < len(grants); i++ {
		gap := grants[i].Sub(grants[i-1])
		require.GreaterOrEqual(t, gap, delay-slack, "gap between grant %d and %d", i-1, i)
	}
}

func TestLimiterFIFO(t *testing.T) {
	t.Parallel()

	l := NewLimiter(15 * time.Millisecond)
	defer l.Close()

	const n = 5
	order := make(chan int, n)
	var wg sync.WaitGroup

	ctx := context.Background()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx))
			order <- i
		}(i)
		// Stagger the launches so arrival order is deterministic.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()
	close(order)

	var got []int
	for i := range order {
		got = append(got, i)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLimiterCancelledWaiter(t *testing.T) {
	t.Parallel()

	l := NewLimiter(50 * time.Millisecond)
	defer l.Close()

	// Burn the initial token so the next waiter has to queue.
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// A cancelled waiter must not wedge the queue for later callers.
	require.NoError(t, l.Wait(context.Background()))
}

func TestLimiterZeroDelay(t *testing.T) {
	t.Parallel()

	l := NewLimiter(0)
	defer l.Close()

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), time.Second)
}
