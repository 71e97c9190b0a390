package simulation

import (
	"banksim/internal/models"
	"banksim/internal/queue"
	"banksim/internal/reception"
	"banksim/internal/state"
	"banksim/internal/worker"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOptions() Options {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Options{Log: l}
}

func fastConfig(customers int) Config {
	delays := make([]int, customers)
	for i := range delays {
		delays[i] = 1 + i%3
	}
	return Config{
		Customers:     customers,
		Acceleration:  1000,
		ArrivalDelays: delays,
		ServiceDelays: append([]int(nil), delays...),
	}
}

func TestSingleQueueServesEveryCustomer(t *testing.T) {
	shared := state.New()
	sim, err := NewSingleQueue(shared, fastConfig(5), quietOptions())
	require.NoError(t, err)

	result := sim.Run(context.Background())

	assert.Equal(t, models.ModeSingle, result.Mode)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 5, result.Arrived)
	assert.Zero(t, result.Dropped)
	assert.False(t, result.Interrupted)
	assert.Greater(t, result.WaitTotal, 0.0)
	assert.InDelta(t, result.WaitTotal/5, result.WaitAverage, 1e-9)
	assert.Equal(t, map[int]int{1: 5}, result.PerQueue)

	served := 0
	for teller, n := range result.PerTeller {
		assert.Contains(t, []int{1, 2, 3}, teller)
		served += n
	}
	assert.Equal(t, 5, served)
}

func TestMultiQueueStaysWithinTarget(t *testing.T) {
	shared := state.New()
	sim, err := NewMultiQueue(shared, fastConfig(9), quietOptions())
	require.NoError(t, err)

	result := sim.Run(context.Background())

	// The last-ID stop check may close the bank with customers still queued.
	assert.Equal(t, models.ModeMulti, result.Mode)
	assert.GreaterOrEqual(t, result.Processed, 1)
	assert.LessOrEqual(t, result.Processed, 9)
	assert.Equal(t, 9, result.Arrived)
	for q := range result.PerQueue {
		assert.Contains(t, []int{1, 2, 3}, q)
	}
}

// TestOneTellerRealTime runs five customers at acceleration 1 through a
// single queue drained by one teller.
func TestOneTellerRealTime(t *testing.T) {
	if testing.Short() {
		t.Skip("runs at acceleration 1")
	}
	shared := state.New()
	ones := []int{1, 1, 1, 1, 1}
	logger := quietOptions().Log

	var (
		mu    sync.Mutex
		waits []float64
	)
	onEvent := func(e models.Event) {
		if e.Type != models.EventServed {
			return
		}
		mu.Lock()
		waits = append(waits, e.Wait)
		mu.Unlock()
	}

	q := queue.New[*models.Customer](shared.IDs.NextQueue(), 5)
	teller := worker.New(shared, q, 5, 1, ones, logger, onEvent)
	rec := reception.NewSingle(shared, q, 5, 1, ones, logger, onEvent)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rec.Run(context.Background())
	}()
	go func() {
		defer wg.Done()
		teller.Run(context.Background())
	}()
	wg.Wait()

	snap := shared.Stats.Snapshot()
	assert.Equal(t, 5, snap.Processed)
	assert.InDelta(t, snap.WaitTotal/5, snap.WaitAverage, 1e-9)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, waits, 5)
	for i, w := range waits {
		assert.Greater(t, w, 0.0, "customer %d", i)
	}
}

func TestRunEmitsEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		counts = make(map[string]int)
		runIDs = make(map[string]bool)
	)
	opts := quietOptions()
	opts.OnEvent = func(e models.Event) {
		mu.Lock()
		defer mu.Unlock()
		counts[e.Type]++
		runIDs[e.RunID] = true
	}

	sim, err := NewSingleQueue(state.New(), fastConfig(4), opts)
	require.NoError(t, err)
	sim.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, counts[models.EventArrived])
	assert.Equal(t, 4, counts[models.EventServed])
	assert.Equal(t, Tellers, counts[models.EventTellerStopped])
	assert.Equal(t, 1, counts[models.EventRunComplete])
	assert.Equal(t, map[string]bool{sim.ID(): true}, runIDs)
}

func TestInterruptedRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig(5)
	cfg.Acceleration = 1
	sim, err := NewMultiQueue(state.New(), cfg, quietOptions())
	require.NoError(t, err)

	result := sim.Run(ctx)
	assert.True(t, result.Interrupted)
	assert.Equal(t, 0, result.Processed)
}

func TestResetRestoresInitialState(t *testing.T) {
	shared := state.New()
	cfg := fastConfig(5)

	sim, err := NewSingleQueue(shared, cfg, quietOptions())
	require.NoError(t, err)
	first := sim.Run(context.Background())
	sim.Reset()

	snap := shared.Stats.Snapshot()
	assert.Equal(t, 0, snap.Processed)
	assert.Equal(t, -1, snap.LastServed)
	assert.Equal(t, 0, shared.Arrivals.Arrived())
	assert.Equal(t, 0, shared.IDs.NextCustomer())
	shared.IDs.Reset()

	sim, err = NewSingleQueue(shared, cfg, quietOptions())
	require.NoError(t, err)
	second := sim.Run(context.Background())

	assert.Equal(t, first.Processed, second.Processed)
	assert.Equal(t, first.Arrived, second.Arrived)
	assert.Equal(t, first.PerQueue, second.PerQueue)
}

func TestCompare(t *testing.T) {
	single, multi, err := Compare(context.Background(), state.New(), fastConfig(6), quietOptions())
	require.NoError(t, err)

	assert.Equal(t, models.ModeSingle, single.Mode)
	assert.Equal(t, models.ModeMulti, multi.Mode)
	assert.Equal(t, 6, single.Processed)
	assert.LessOrEqual(t, multi.Processed, 6)
	assert.Equal(t, 6, multi.Arrived, "multi run must start from fresh counters")
	assert.NotEqual(t, single.ID, multi.ID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() Config
	}{
		{"no customers", func() Config { c := fastConfig(3); c.Customers = 0; return c }},
		{"negative capacity", func() Config { c := fastConfig(3); c.QueueCapacity = -1; return c }},
		{"capacity above customers", func() Config { c := fastConfig(3); c.QueueCapacity = 4; return c }},
		{"huge capacity", func() Config { c := fastConfig(3); c.QueueCapacity = 1 << 62; return c }},
		{"too many customers", func() Config { c := fastConfig(3); c.Customers = models.MaxCustomers + 1; return c }},
		{"short arrivals", func() Config { c := fastConfig(3); c.ArrivalDelays = c.ArrivalDelays[:2]; return c }},
		{"short services", func() Config { c := fastConfig(3); c.ServiceDelays = nil; return c }},
		{"negative delay", func() Config { c := fastConfig(3); c.ArrivalDelays[1] = -1; return c }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSingleQueue(state.New(), tt.cfg(), quietOptions())
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}

	_, err := New(state.New(), models.Mode("zigzag"), fastConfig(3), quietOptions())
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestQueueCapacityDefaultsToCustomers(t *testing.T) {
	cfg := fastConfig(4)
	assert.Equal(t, 4, cfg.capacity())
	cfg.QueueCapacity = 2
	assert.Equal(t, 2, cfg.capacity())
}
