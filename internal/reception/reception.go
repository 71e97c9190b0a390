package reception

import (
	"banksim/internal/models"
	"banksim/internal/pacing"
	"banksim/internal/queue"
	"banksim/internal/state"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CustomerQueue is the queue type the reception fills
type CustomerQueue = queue.Bounded[*models.Customer]

// Reception admits customers into one queue, or into the shortest of three.
type Reception struct {
	queues    []*CustomerQueue
	routing   bool
	routingMu sync.Mutex // guards the size-check-then-insert across the queue set
	ids       *state.Identity
	arrivals  *state.Arrivals
	pacer     *pacing.Pacer
	log       logrus.FieldLogger
	onEvent   func(models.Event)
}

// NewSingle creates a reception feeding one queue.
func NewSingle(shared *state.Shared, q *CustomerQueue, target, acceleration int, delays []int, log logrus.FieldLogger, onEvent func(models.Event)) *Reception {
	return newReception(shared, []*CustomerQueue{q}, false, target, acceleration, delays, log, onEvent)
}

// NewMulti creates a reception in charge of three queues. With routing
// enabled every arrival goes to the queue holding the fewest customers;
// otherwise all arrivals go to the first queue.
func NewMulti(shared *state.Shared, queues [3]*CustomerQueue, target, acceleration int, delays []int, routing bool, log logrus.FieldLogger, onEvent func(models.Event)) *Reception {
	return newReception(shared, queues[:], routing, target, acceleration, delays, log, onEvent)
}

func newReception(shared *state.Shared, queues []*CustomerQueue, routing bool, target, acceleration int, delays []int, log logrus.FieldLogger, onEvent func(models.Event)) *Reception {
	shared.Arrivals.Begin(target)
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reception{
		queues:   queues,
		routing:  routing,
		ids:      shared.IDs,
		arrivals: shared.Arrivals,
		pacer:    pacing.New(acceleration, delays),
		log:      log.WithField("component", "reception"),
		onEvent:  onEvent,
	}
}

// QueueIDs lists the IDs of the queues in assignment order.
func (r *Reception) QueueIDs() []int {
	ids := make([]int, len(r.queues))
	for i, q := range r.queues {
		ids[i] = q.ID()
	}
	return ids
}

// Run admits customers until the target has been reached. A full queue drops
// the arrival, and the next delay cycle tries again.
func (r *Reception) Run(ctx context.Context) {
	r.log.Infof("[RECEPTION] Started with %d customers to admit into queues %v", r.arrivals.Remaining(), r.QueueIDs())

	for r.arrivals.Remaining() > 0 {
		if err := r.pacer.Wait(ctx, r.pacer.Clamp(r.arrivals.Arrived())); err != nil {
			if errors.Is(err, pacing.ErrInterrupted) {
				r.log.Warnf("[RECEPTION] Interrupted with %d customers left: %v", r.arrivals.Remaining(), err)
				return
			}
			r.log.Errorf("[RECEPTION] Unable to delay time: %v", err)
		}

		if r.routing {
			r.addToShortestQueue()
		} else {
			r.addToQueue(r.queues[0])
		}
		r.arrivals.Attempted()
	}

	r.log.Infof("[RECEPTION] All customers admitted after %d arrivals (%d dropped)", r.arrivals.Arrived(), r.arrivals.DropCount())
}

// addToQueue admits one customer into q unless q is full.
func (r *Reception) addToQueue(q *CustomerQueue) bool {
	q.Lock()
	defer q.Unlock()

	if q.IsFull() {
		r.arrivals.Dropped()
		r.log.Debugf("[RECEPTION] Queue %d full, arrival dropped", q.ID())
		r.emit(models.Event{Type: models.EventDropped, Customer: -1, Queue: q.ID()})
		return false
	}

	customer := models.NewCustomer(r.ids.NextCustomer())
	q.Enqueue(customer)
	r.arrivals.Admitted()

	r.log.WithField("customer", customer.ID()+1).Debugf("[RECEPTION] Customer %d added to Queue %d.", customer.ID()+1, q.ID())
	r.emit(models.Event{Type: models.EventArrived, Customer: customer.ID(), Queue: q.ID()})
	return true
}

// addToShortestQueue orders the queues by size, keeping assignment order on
// ties, and tries the first one only. Tellers may drain a queue between the
// ordering and the insert; that is tolerated.
func (r *Reception) addToShortestQueue() bool {
	r.routingMu.Lock()
	defer r.routingMu.Unlock()

	return r.addToQueue(r.shortest())
}

func (r *Reception) shortest() *CustomerQueue {
	type sized struct {
		q    *CustomerQueue
		size int
	}
	order := make([]sized, len(r.queues))
	for i, q := range r.queues {
		q.Lock()
		order[i] = sized{q: q, size: q.Size()}
		q.Unlock()
	}
	slices.SortStableFunc(order, func(a, b sized) int {
		return a.size - b.size
	})
	return order[0].q
}

func (r *Reception) emit(e models.Event) {
	if r.onEvent == nil {
		return
	}
	e.At = time.Now()
	r.onEvent(e)
}

// Reset clears the arrival counters.
func (r *Reception) Reset() {
	r.arrivals.Reset()
}
