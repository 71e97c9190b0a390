package pacing

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// BaseUnit is the real duration of one delay step at acceleration 1.
const BaseUnit = 1000 * time.Millisecond

var (
	// ErrExhausted means the delay sequence has no entry at the index.
	ErrExhausted = errors.New("pacing: delay sequence exhausted")
	// ErrInterrupted means the wait ended because the context was cancelled.
	ErrInterrupted = errors.New("pacing: wait interrupted")
)

// Pacer turns a sequence of integer delay multipliers into real sleeps.
type Pacer struct {
	unit   time.Duration
	delays []int
}

// New builds a pacer. A non-positive acceleration is treated as 1. The unit
// is 1000/acceleration whole milliseconds, so factors above 1000 pace with a
// zero unit.
func New(acceleration int, delays []int) *Pacer {
	return &Pacer{
		unit:   time.Duration(1000/NormalizeAcceleration(acceleration)) * time.Millisecond,
		delays: delays,
	}
}

// NormalizeAcceleration maps non-positive factors to 1.
func NormalizeAcceleration(acceleration int) int {
	if acceleration <= 0 {
		return 1
	}
	return acceleration
}

func (p *Pacer) Unit() time.Duration { return p.unit }
func (p *Pacer) Len() int            { return len(p.delays) }

// Delay returns the sleep for the entry at index.
func (p *Pacer) Delay(index int) (time.Duration, error) {
	if index < 0 || index >= len(p.delays) {
		return 0, errors.Wrapf(ErrExhausted, "index %d of %d", index, len(p.delays))
	}
	return p.unit * time.Duration(p.delays[index]), nil
}

// Clamp limits index to the last entry of the sequence.
func (p *Pacer) Clamp(index int) int {
	if index >= len(p.delays) {
		return len(p.delays) - 1
	}
	if index < 0 {
		return 0
	}
	return index
}

// Wait sleeps for the entry at index. It returns ErrExhausted without
// sleeping when the index is past the sequence, and ErrInterrupted if ctx is
// cancelled first.
func (p *Pacer) Wait(ctx context.Context, index int) error {
	d, err := p.Delay(index)
	if err != nil {
		return err
	}
	if d <= 0 {
		if ctx.Err() != nil {
			return errors.Wrap(ErrInterrupted, ctx.Err().Error())
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(ErrInterrupted, ctx.Err().Error())
	case <-timer.C:
		return nil
	}
}
