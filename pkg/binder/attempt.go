package binder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Attempt is one in-flight bind request. Its outcome is written exactly once;
// Done is closed at that moment.
type Attempt struct {
	id         string
	identifier string
	started    time.Time
	logger     *slog.Logger

	done    chan struct{}
	outcome Outcome

	// guarded by Coordinator.mu
	settled bool
	reg     Registration
}

func newAttempt(identifier string, now time.Time) *Attempt {
	return &Attempt{
		id:         uuid.New().String(),
		identifier: identifier,
		started:    now,
		done:       make(chan struct{}),
	}
}

func (a *Attempt) ID() string {
	return a.id
}

func (a *Attempt) Identifier() string {
	return a.identifier
}

func (a *Attempt) Started() time.Time {
	return a.started
}

func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

func (a *Attempt) Outcome() (Outcome, bool) {
	select {
	case <-a.done:
		return a.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the attempt settles or ctx is done. Giving up on the wait
// does not cancel the attempt.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
