package simulation

import (
	"banksim/internal/models"
	"banksim/internal/state"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerRunsModesInOrder(t *testing.T) {
	r := NewRunner(state.New(), quietOptions())

	results, err := r.Run(context.Background(), fastConfig(4), models.ModeSingle, models.ModeMulti)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.ModeSingle, results[0].Mode)
	assert.Equal(t, models.ModeMulti, results[1].Mode)
	assert.Equal(t, 4, results[0].Processed)

	assert.Equal(t, 0, r.Shared().Stats.Processed(), "state is reset after each run")
}

func TestRunnerRejectsBadInput(t *testing.T) {
	r := NewRunner(state.New(), quietOptions())

	_, err := r.Run(context.Background(), fastConfig(2))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = r.Run(context.Background(), fastConfig(2), models.Mode("other"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	err = r.Start(context.Background(), Config{}, nil, models.ModeSingle)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestRunnerIsBusyWhileRunning(t *testing.T) {
	r := NewRunner(state.New(), quietOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := Config{
		Customers:     2,
		Acceleration:  1,
		ArrivalDelays: []int{60, 60},
		ServiceDelays: []int{60, 60},
	}
	done := make(chan []*models.RunResult, 1)
	require.NoError(t, r.Start(ctx, slow, func(results []*models.RunResult, err error) {
		assert.NoError(t, err)
		done <- results
	}, models.ModeSingle))

	_, err := r.Run(context.Background(), fastConfig(2), models.ModeSingle)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.True(t, errors.Is(r.Start(context.Background(), fastConfig(2), nil, models.ModeMulti), ErrBusy))

	cancel()
	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.True(t, results[0].Interrupted)
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not stop")
	}

	_, err = r.Run(context.Background(), fastConfig(2), models.ModeSingle)
	assert.NoError(t, err)
}
