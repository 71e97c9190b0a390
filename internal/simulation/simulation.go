package simulation

import (
	"banksim/internal/models"
	"banksim/internal/pacing"
	"banksim/internal/queue"
	"banksim/internal/reception"
	"banksim/internal/state"
	"banksim/internal/worker"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Tellers is the number of tellers in either discipline.
const Tellers = 3

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds the inputs shared by both disciplines.
type Config struct {
	Customers     int
	Acceleration  int
	QueueCapacity int // 0 means Customers
	ArrivalDelays []int
	ServiceDelays []int
}

func (cfg Config) Validate() error {
	if cfg.Customers <= 0 {
		return errors.Wrap(ErrInvalidConfig, "customers must be > 0")
	}
	if cfg.Customers > models.MaxCustomers {
		return errors.Wrapf(ErrInvalidConfig, "customers must be <= %d", models.MaxCustomers)
	}
	if cfg.QueueCapacity < 0 || cfg.QueueCapacity > cfg.Customers {
		return errors.Wrapf(ErrInvalidConfig, "queue capacity must be between 0 and %d", cfg.Customers)
	}
	if len(cfg.ArrivalDelays) < cfg.Customers {
		return errors.Wrapf(ErrInvalidConfig, "need %d arrival delays, got %d", cfg.Customers, len(cfg.ArrivalDelays))
	}
	if len(cfg.ServiceDelays) < cfg.Customers {
		return errors.Wrapf(ErrInvalidConfig, "need %d service delays, got %d", cfg.Customers, len(cfg.ServiceDelays))
	}
	for i, d := range cfg.ArrivalDelays {
		if d < 0 {
			return errors.Wrapf(ErrInvalidConfig, "arrival delay %d is negative", i)
		}
	}
	for i, d := range cfg.ServiceDelays {
		if d < 0 {
			return errors.Wrapf(ErrInvalidConfig, "service delay %d is negative", i)
		}
	}
	return nil
}

func (cfg Config) capacity() int {
	if cfg.QueueCapacity > 0 {
		return cfg.QueueCapacity
	}
	return cfg.Customers
}

// Options carries the optional observers of a run.
type Options struct {
	Log     logrus.FieldLogger
	OnEvent func(models.Event)
}

// Simulation is one reception and three tellers over one or three queues.
type Simulation struct {
	id        string
	mode      models.Mode
	cfg       Config
	shared    *state.Shared
	queues    []*reception.CustomerQueue
	reception *reception.Reception
	tellers   []*worker.Teller
	log       logrus.FieldLogger
	onEvent   func(models.Event)
}

// NewSingleQueue builds the single-line bank: three tellers draining one
// shared queue.
func NewSingleQueue(shared *state.Shared, cfg Config, opts Options) (*Simulation, error) {
	s, err := newSimulation(shared, models.ModeSingle, cfg, opts)
	if err != nil {
		return nil, err
	}

	q := queue.New[*models.Customer](shared.IDs.NextQueue(), cfg.capacity())
	s.queues = []*reception.CustomerQueue{q}
	for i := 0; i < Tellers; i++ {
		s.tellers = append(s.tellers, worker.New(shared, q, cfg.Customers, cfg.Acceleration, cfg.ServiceDelays, s.log, s.onEvent))
	}
	s.reception = reception.NewSingle(shared, q, cfg.Customers, cfg.Acceleration, cfg.ArrivalDelays, s.log, s.onEvent)
	return s, nil
}

// NewMultiQueue builds the multi-line bank: one teller per queue and a
// reception routing each arrival to the shortest queue.
func NewMultiQueue(shared *state.Shared, cfg Config, opts Options) (*Simulation, error) {
	s, err := newSimulation(shared, models.ModeMulti, cfg, opts)
	if err != nil {
		return nil, err
	}

	var queues [Tellers]*reception.CustomerQueue
	for i := range queues {
		queues[i] = queue.New[*models.Customer](shared.IDs.NextQueue(), cfg.capacity())
	}
	s.queues = queues[:]
	for _, q := range queues {
		s.tellers = append(s.tellers, worker.New(shared, q, cfg.Customers, cfg.Acceleration, cfg.ServiceDelays, s.log, s.onEvent))
	}
	s.reception = reception.NewMulti(shared, queues, cfg.Customers, cfg.Acceleration, cfg.ArrivalDelays, true, s.log, s.onEvent)
	return s, nil
}

// New dispatches on mode.
func New(shared *state.Shared, mode models.Mode, cfg Config, opts Options) (*Simulation, error) {
	switch mode {
	case models.ModeSingle:
		return NewSingleQueue(shared, cfg, opts)
	case models.ModeMulti:
		return NewMultiQueue(shared, cfg, opts)
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown mode %q", mode)
	}
}

func newSimulation(shared *state.Shared, mode models.Mode, cfg Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Acceleration = pacing.NormalizeAcceleration(cfg.Acceleration)

	id := uuid.NewString()
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Simulation{
		id:     id,
		mode:   mode,
		cfg:    cfg,
		shared: shared,
		log:    log.WithFields(logrus.Fields{"run_id": id, "mode": mode}),
	}
	if opts.OnEvent != nil {
		s.onEvent = func(e models.Event) {
			e.RunID = id
			opts.OnEvent(e)
		}
	}
	return s, nil
}

func (s *Simulation) ID() string        { return s.id }
func (s *Simulation) Mode() models.Mode { return s.mode }

// Run starts the reception and every teller, then waits for all of them to
// stop. The tasks share ctx: cancelling it interrupts the reception and every
// teller at their next delay, not just the wait in Run. Run still joins each
// of them and reports completion; the result is flagged as interrupted.
func (s *Simulation) Run(ctx context.Context) *models.RunResult {
	started := time.Now()
	s.log.Infof("[SIM] Starting %s-queue simulation with %d customers", s.mode, s.cfg.Customers)

	var wg sync.WaitGroup
	wg.Add(1 + len(s.tellers))
	go func() {
		defer wg.Done()
		s.reception.Run(ctx)
	}()
	for _, t := range s.tellers {
		go func(t *worker.Teller) {
			defer wg.Done()
			t.Run(ctx)
		}(t)
	}
	wg.Wait()

	result := s.result(started, ctx.Err() != nil)
	if result.Interrupted {
		s.log.Warnf("[SIM] Simulation interrupted: %v", ctx.Err())
	}
	s.log.Infof("[SIM] Simulation complete! %d customers served in %s", result.Processed, result.Duration)
	if s.onEvent != nil {
		s.onEvent(models.Event{
			Type:      models.EventRunComplete,
			Processed: result.Processed,
			WaitTotal: result.WaitTotal,
			At:        time.Now(),
		})
	}
	return result
}

func (s *Simulation) result(started time.Time, interrupted bool) *models.RunResult {
	snap := s.shared.Stats.Snapshot()
	return &models.RunResult{
		ID:             s.id,
		Mode:           s.mode,
		Customers:      s.cfg.Customers,
		Acceleration:   s.cfg.Acceleration,
		QueueCapacity:  s.cfg.capacity(),
		Processed:      snap.Processed,
		ProcessedFinal: snap.ProcessedFinal,
		Arrived:        s.shared.Arrivals.Arrived(),
		Dropped:        s.shared.Arrivals.DropCount(),
		WaitTotal:      snap.WaitTotal,
		WaitAverage:    snap.WaitAverage,
		WaitMin:        snap.WaitMin,
		WaitMax:        snap.WaitMax,
		PerTeller:      snap.PerTeller,
		PerQueue:       snap.PerQueue,
		Duration:       time.Since(started),
		Interrupted:    interrupted,
		StartedAt:      started,
	}
}

// Reset clears the queues, the reception, the tellers and the identity
// counters so the next run starts from the same state as the first.
func (s *Simulation) Reset() {
	for _, q := range s.queues {
		q.Lock()
		q.Reset()
		q.Unlock()
	}
	s.reception.Reset()
	for _, t := range s.tellers {
		t.Reset()
	}
	s.shared.IDs.Reset()
}

// Compare runs the single-queue bank, then the multi-queue bank with the same
// inputs, resetting the shared state after each run.
func Compare(ctx context.Context, shared *state.Shared, cfg Config, opts Options) (single, multi *models.RunResult, err error) {
	for _, mode := range []models.Mode{models.ModeSingle, models.ModeMulti} {
		sim, err := New(shared, mode, cfg, opts)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "compare: build %s simulation", mode)
		}
		result := sim.Run(ctx)
		sim.Reset()
		if mode == models.ModeSingle {
			single = result
		} else {
			multi = result
		}
	}
	return single, multi, nil
}
