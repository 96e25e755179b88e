package binder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/veesix-networks/netbind/pkg/logger"
)

type Option func(*Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// WithRequestTimeout asks the platform to answer unavailable when no
// matching network shows up in time. Zero leaves the request open.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

func WithTransport(t Transport) Option {
	return func(c *Coordinator) {
		c.transport = t
	}
}

// WithClearOnLost controls what happens when the bound network disappears
// outside of a bind attempt. When true (the default) the override is cleared
// and the binding dropped; otherwise the binding stays until RequestUnbind.
func WithClearOnLost(clear bool) Option {
	return func(c *Coordinator) {
		c.clearOnLost = clear
	}
}

type binding struct {
	network BoundNetwork
	attempt *Attempt
	reg     Registration
}

// Coordinator serializes bind attempts against a Platform and owns the single
// bound network. The pending attempt and the binding share one lock, so an
// unbind racing an available event observes either the old or the new
// binding, never a half-installed one.
type Coordinator struct {
	platform    Platform
	logger      *slog.Logger
	observer    Observer
	timeout     time.Duration
	transport   Transport
	clearOnLost bool
	now         func() time.Time

	mu      sync.Mutex
	pending *Attempt
	bound   *binding
}

func New(platform Platform, opts ...Option) *Coordinator {
	c := &Coordinator{
		platform:    platform,
		logger:      logger.Get(logger.Binder),
		transport:   TransportWiFi,
		clearOnLost: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestBind starts a bind attempt and waits for its outcome. If ctx ends
// first the attempt keeps running; a later Bound outcome must be released with
// RequestUnbind.
func (c *Coordinator) RequestBind(ctx context.Context, identifier string) (Outcome, error) {
	a, err := c.Begin(ctx, identifier)
	if err != nil {
		return Outcome{}, err
	}
	return a.Wait(ctx)
}

func (c *Coordinator) Begin(ctx context.Context, identifier string) (*Attempt, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty network identifier", ErrInvalidArgument)
	}

	c.mu.Lock()
	if c.pending != nil {
		pending := c.pending.identifier
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyInProgress, pending)
	}
	a := newAttempt(identifier, c.now())
	a.logger = logger.WithRequest(c.logger, logger.RequestAttrs{RequestID: a.id, Identifier: identifier})
	c.pending = a
	c.mu.Unlock()

	a.logger.Info("Requesting network", "transport", c.transport, "timeout", c.timeout)

	criteria := Criteria{
		Identifier: identifier,
		Transport:  c.transport,
		Timeout:    c.timeout,
	}

	reg, err := c.requestNetwork(context.WithoutCancel(ctx), criteria, func(ev Event) {
		c.handle(a, ev)
	})
	if err != nil {
		a.logger.Warn("Network request failed", "error", err)
		c.complete(a, Unreachable(platformError("request network", err)))
		return a, nil
	}

	c.attach(a, reg)
	return a, nil
}

func (c *Coordinator) RequestUnbind(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.bound == nil {
		c.mu.Unlock()
		return false, nil
	}

	prev := c.bound
	if err := c.installOverride(ctx, nil); err != nil {
		c.mu.Unlock()
		c.logger.Error("Failed to clear route override", "handle", prev.network.Handle, "error", err)
		return false, &UnbindError{Handle: prev.network.Handle, Err: err}
	}
	c.bound = nil
	c.mu.Unlock()

	c.logger.Info("Released network", "handle", prev.network.Handle, "ssid", prev.network.Identifier)
	c.release(prev, ReleaseUnbind)
	return true, nil
}

// Close releases the bound network, if any. A pending attempt is left to
// settle on its own.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	prev := c.bound
	if prev == nil {
		c.mu.Unlock()
		return nil
	}
	if err := c.installOverride(ctx, nil); err != nil {
		c.mu.Unlock()
		return &UnbindError{Handle: prev.network.Handle, Err: err}
	}
	c.bound = nil
	c.mu.Unlock()

	c.release(prev, ReleaseClosed)
	return nil
}

func (c *Coordinator) Bound() (BoundNetwork, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bound == nil {
		return BoundNetwork{}, false
	}
	return c.bound.network, true
}

func (c *Coordinator) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return "", false
	}
	return c.pending.identifier, true
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.pending != nil:
		return StatePending
	case c.bound != nil:
		return StateBound
	default:
		return StateIdle
	}
}

// Snapshot returns the pending identifier and bound network as seen under a
// single lock acquisition.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{State: StateIdle}
	if c.bound != nil {
		b := c.bound.network
		s.Bound = &b
		s.State = StateBound
	}
	if c.pending != nil {
		s.Pending = c.pending.identifier
		s.State = StatePending
	}
	return s
}

// attach stores the registration returned by the platform. Events may have
// settled the attempt before RequestNetwork returned.
func (c *Coordinator) attach(a *Attempt, reg Registration) {
	c.mu.Lock()
	a.reg = reg
	owned := c.bound != nil && c.bound.attempt == a
	if owned {
		c.bound.reg = reg
	}
	stale := a.settled && !owned
	c.mu.Unlock()

	if stale && reg != nil {
		reg.Release()
	}
}

func (c *Coordinator) handle(a *Attempt, ev Event) {
	var after []func()

	c.mu.Lock()
	if a.settled {
		after = c.afterSettlementLocked(a, ev)
	} else {
		after = c.settleLocked(a, ev)
	}
	c.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}

func (c *Coordinator) settleLocked(a *Attempt, ev Event) []func() {
	var (
		outcome Outcome
		after   []func()
	)

	switch ev.Kind {
	case EventAvailable:
		h := ev.Handle
		if err := c.installOverride(context.Background(), &h); err != nil {
			a.logger.Error("Failed to install route override", "handle", h, "error", err)
			outcome = Unreachable(platformError("install override", err))
			break
		}
		if prev := c.bound; prev != nil {
			after = append(after, func() { c.release(prev, ReleaseSuperseded) })
		}
		c.bound = &binding{
			network: BoundNetwork{
				Handle:     h,
				Identifier: a.identifier,
				RequestID:  a.id,
				BoundAt:    c.now(),
			},
			attempt: a,
			reg:     a.reg,
		}
		outcome = Bound(h)
	case EventLost:
		outcome = Lost(ev.Handle)
	case EventUnavailable:
		outcome = Unreachable(nil)
	default:
		a.logger.Warn("Ignoring unknown platform event", "event", ev.Kind)
		return nil
	}

	c.completeLocked(a, outcome)

	if !outcome.OK() && a.reg != nil {
		after = append(after, a.reg.Release)
	}
	if c.observer != nil {
		after = append(after, func() { c.observer.Settled(a, outcome) })
	}
	return after
}

func (c *Coordinator) afterSettlementLocked(a *Attempt, ev Event) []func() {
	b := c.bound
	if ev.Kind != EventLost || b == nil || b.attempt != a || b.network.Handle != ev.Handle {
		a.logger.Debug("Discarding event for settled request", "event", ev.Kind, "handle", ev.Handle)
		return nil
	}

	if !c.clearOnLost {
		a.logger.Warn("Bound network lost, keeping route override until unbind", "handle", ev.Handle)
		return nil
	}

	// The binding stays in place when the clear fails so RequestUnbind can
	// retry it.
	if err := c.installOverride(context.Background(), nil); err != nil {
		a.logger.Error("Failed to clear override of lost network", "handle", ev.Handle, "error", err)
		return nil
	}
	c.bound = nil
	a.logger.Info("Bound network lost, route override cleared", "handle", ev.Handle)

	return []func(){func() { c.release(b, ReleaseLost) }}
}

func (c *Coordinator) complete(a *Attempt, o Outcome) {
	c.mu.Lock()
	if a.settled {
		c.mu.Unlock()
		return
	}
	c.completeLocked(a, o)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.Settled(a, o)
	}
}

func (c *Coordinator) completeLocked(a *Attempt, o Outcome) {
	a.settled = true
	a.outcome = o
	if c.pending == a {
		c.pending = nil
	}
	close(a.done)

	a.logger.Info("Request settled", "outcome", o.Status, "handle", o.Handle, "elapsed", c.now().Sub(a.started))
}

func (c *Coordinator) release(b *binding, reason ReleaseReason) {
	if b.reg != nil {
		b.reg.Release()
	}
	if c.observer != nil {
		c.observer.Released(b.network, reason)
	}
}

func (c *Coordinator) requestNetwork(ctx context.Context, criteria Criteria, notify func(Event)) (reg Registration, err error) {
	defer func() {
		if r := recover(); r != nil {
			reg, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return c.platform.RequestNetwork(ctx, criteria, notify)
}

func (c *Coordinator) installOverride(ctx context.Context, h *Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.platform.InstallOverride(ctx, h)
}
