package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veesix-networks/netbind/pkg/logger"
)

type Orchestrator struct {
	components []Component
	started    []Component
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		components: make([]Component, 0),
		logger:     logger.Get(logger.Main),
	}
}

func (o *Orchestrator) Register(comp Component) {
	if comp == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.components = append(o.components, comp)
}

func (o *Orchestrator) Components() []Component {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Component, len(o.components))
	copy(out, o.components)
	return out
}

func (o *Orchestrator) Get(name string) (Component, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, comp := range o.components {
		if comp.Name() == name {
			return comp, true
		}
	}
	return nil, false
}

// Start starts components in registration order. If one fails, the ones
// already started are stopped in reverse order before the error is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.started = o.started[:0]
	for _, comp := range o.components {
		o.logger.Debug("Starting component", "component", comp.Name())
		if err := comp.Start(ctx); err != nil {
			startErr := fmt.Errorf("failed to start %s: %w", comp.Name(), err)
			if stopErr := o.stopLocked(ctx); stopErr != nil {
				return errors.Join(startErr, stopErr)
			}
			return startErr
		}
		o.started = append(o.started, comp)
	}
	return nil
}

// Stop stops every started component in reverse order. All components are
// asked to stop even if an earlier one fails.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.stopLocked(ctx)
}

func (o *Orchestrator) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(o.started) - 1; i >= 0; i-- {
		comp := o.started[i]
		o.logger.Debug("Stopping component", "component", comp.Name())
		if err := comp.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", comp.Name(), err))
		}
	}
	o.started = o.started[:0]
	return errors.Join(errs...)
}
