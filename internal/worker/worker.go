package worker

import (
	"banksim/internal/models"
	"banksim/internal/pacing"
	"banksim/internal/queue"
	"banksim/internal/state"
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Teller drains one queue and folds each customer's wait into the shared
// aggregates
type Teller struct {
	id      int
	queue   *queue.Bounded[*models.Customer]
	stats   *state.Aggregates
	pacer   *pacing.Pacer
	log     logrus.FieldLogger
	onEvent func(models.Event) // Callback for publishing served customers
}

// New creates a teller bound to q. The service delays are indexed by the
// number of customers served by all tellers of the run, not by this one.
func New(shared *state.Shared, q *queue.Bounded[*models.Customer], target, acceleration int, delays []int, log logrus.FieldLogger, onEvent func(models.Event)) *Teller {
	shared.Stats.Open(target)
	id := shared.IDs.NextTeller()
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Teller{
		id:      id,
		queue:   q,
		stats:   shared.Stats,
		pacer:   pacing.New(acceleration, delays),
		log:     log.WithFields(logrus.Fields{"teller": id, "queue": q.ID()}),
		onEvent: onEvent,
	}
}

func (t *Teller) ID() int { return t.id }

// Run serves customers until the bank closes or ctx is cancelled
func (t *Teller) Run(ctx context.Context) {
	t.log.Infof("[TELLER-%d] Started on queue %d", t.id, t.queue.ID())

	for {
		err := t.pacer.Wait(ctx, t.stats.Processed())
		if errors.Is(err, pacing.ErrInterrupted) {
			t.log.Warnf("[TELLER-%d] Interrupted while waiting: %v", t.id, err)
			return
		}
		if err != nil {
			// No more scheduled service events; fall through to the stop check.
			t.log.Debugf("[TELLER-%d] Reached end of service data", t.id)
		}

		if t.stats.CloseIfDone() {
			t.log.Infof("[TELLER-%d] Bank closed after %d customers", t.id, t.stats.Processed())
			t.emit(models.Event{Type: models.EventTellerStopped, Processed: t.stats.Processed()})
			return
		}

		t.processCustomer()

		if !t.stats.IsOpen() {
			t.log.Infof("[TELLER-%d] Bank closed by a sibling teller", t.id)
			t.emit(models.Event{Type: models.EventTellerStopped, Processed: t.stats.Processed()})
			return
		}
	}
}

// processCustomer removes the front customer, if any, and records its wait.
// The queue lock is held across peek, removal and the aggregate update.
func (t *Teller) processCustomer() bool {
	t.queue.Lock()
	defer t.queue.Unlock()

	if _, ok := t.queue.Front(); !ok {
		return false
	}
	customer, ok := t.queue.Dequeue()
	if !ok {
		return false
	}

	wait := customer.WaitTime(time.Now())
	processed, total := t.stats.Record(t.id, t.queue.ID(), customer.ID(), wait)

	t.log.WithField("customer", customer.ID()+1).Debugf(
		"[TELLER-%d] Processed Customer %d from Queue %d, waited %.3f seconds. (%.3f total)",
		t.id, customer.ID()+1, t.queue.ID(), wait, total)
	t.emit(models.Event{
		Type:      models.EventServed,
		Customer:  customer.ID(),
		Wait:      wait,
		WaitTotal: total,
		Processed: processed,
	})
	return true
}

func (t *Teller) emit(e models.Event) {
	if t.onEvent == nil {
		return
	}
	e.Teller = t.id
	e.Queue = t.queue.ID()
	e.At = time.Now()
	t.onEvent(e)
}

// Reset clears the aggregates this teller reports into.
func (t *Teller) Reset() {
	t.stats.Reset()
}
