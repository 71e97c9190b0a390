package simulation

import (
	"banksim/internal/models"
	"banksim/internal/state"
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("a simulation is already running")

// Runner serialises runs over one Shared value. The counters are process-wide,
// so two runs may never overlap.
type Runner struct {
	mu     sync.Mutex
	shared *state.Shared
	opts   Options
}

func NewRunner(shared *state.Shared, opts Options) *Runner {
	return &Runner{shared: shared, opts: opts}
}

// Shared exposes the counters of the current run for live snapshots.
func (r *Runner) Shared() *state.Shared { return r.shared }

// Run executes the given disciplines in order, resetting the shared state
// after each one.
func (r *Runner) Run(ctx context.Context, cfg Config, modes ...models.Mode) ([]*models.RunResult, error) {
	if err := validate(cfg, modes); err != nil {
		return nil, err
	}
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	return r.runLocked(ctx, cfg, modes)
}

// Start is Run in the background. Validation and the busy check happen before
// it returns; done receives the results once every run has finished and the
// runner is free again.
func (r *Runner) Start(ctx context.Context, cfg Config, done func([]*models.RunResult, error), modes ...models.Mode) error {
	if err := validate(cfg, modes); err != nil {
		return err
	}
	if !r.mu.TryLock() {
		return ErrBusy
	}

	go func() {
		results, err := r.runLocked(ctx, cfg, modes)
		r.mu.Unlock()
		if done != nil {
			done(results, err)
		}
	}()
	return nil
}

func (r *Runner) runLocked(ctx context.Context, cfg Config, modes []models.Mode) ([]*models.RunResult, error) {
	results := make([]*models.RunResult, 0, len(modes))
	for _, mode := range modes {
		sim, err := New(r.shared, mode, cfg, r.opts)
		if err != nil {
			return results, errors.Wrapf(err, "runner: build %s simulation", mode)
		}
		results = append(results, sim.Run(ctx))
		sim.Reset()
	}
	return results, nil
}

func validate(cfg Config, modes []models.Mode) error {
	if len(modes) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no mode given")
	}
	for _, m := range modes {
		if !m.Valid() {
			return errors.Wrapf(ErrInvalidConfig, "unknown mode %q", m)
		}
	}
	return cfg.Validate()
}
