package binder_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/platform/sim"
)

type recorder struct {
	mu       sync.Mutex
	settled  []binder.Outcome
	released []binder.ReleaseReason
}

func (r *recorder) Settled(a *binder.Attempt, o binder.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, o)
}

func (r *recorder) Released(b binder.BoundNetwork, reason binder.ReleaseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, reason)
}

func (r *recorder) outcomes() []binder.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]binder.Outcome(nil), r.settled...)
}

func (r *recorder) releases() []binder.ReleaseReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]binder.ReleaseReason(nil), r.released...)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRequestBindAvailable(t *testing.T) {
	p := sim.New(map[string]sim.Network{
		"HomeNet": {Handle: 42, Delay: 50 * time.Millisecond, Result: sim.ResultAvailable},
	})
	c := binder.New(p)
	ctx := waitCtx(t)

	out, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)
	assert.Equal(t, binder.Bound(42), out)

	bound, ok := c.Bound()
	require.True(t, ok)
	assert.Equal(t, binder.Handle(42), bound.Handle)
	assert.Equal(t, "HomeNet", bound.Identifier)
	assert.Equal(t, binder.StateBound, c.State())

	installed, ok := p.Installed()
	require.True(t, ok)
	assert.Equal(t, binder.Handle(42), installed)

	released, err := c.RequestUnbind(ctx)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 1, p.ClearCount())

	released, err = c.RequestUnbind(ctx)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 1, p.ClearCount())
	assert.Equal(t, binder.StateIdle, c.State())

	requests := p.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, binder.TransportWiFi, requests[0].Criteria.Transport)
	assert.True(t, requests[0].Released())
}

func TestRequestBindEmptyIdentifier(t *testing.T) {
	p := sim.New(nil)
	c := binder.New(p)

	_, err := c.RequestBind(context.Background(), "")
	require.ErrorIs(t, err, binder.ErrInvalidArgument)
	assert.Empty(t, p.Requests())
	assert.Empty(t, p.Overrides())
	assert.Equal(t, binder.StateIdle, c.State())
}

func TestRequestUnbindWithoutBind(t *testing.T) {
	p := sim.New(nil)
	c := binder.New(p)

	released, err := c.RequestUnbind(context.Background())
	require.NoError(t, err)
	assert.False(t, released)
	assert.Empty(t, p.Overrides())
}

func TestRequestBindAlreadyInProgress(t *testing.T) {
	p := sim.New(nil)
	c := binder.New(p)
	ctx := waitCtx(t)

	a, err := c.Begin(ctx, "HomeNet")
	require.NoError(t, err)

	_, err = c.Begin(ctx, "OtherNet")
	require.ErrorIs(t, err, binder.ErrAlreadyInProgress)
	require.Len(t, p.Requests(), 1)

	pending, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "HomeNet", pending)

	require.NoError(t, p.Fire(binder.Event{Kind: binder.EventUnavailable}))
	out, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, binder.StatusUnreachable, out.Status)
	assert.Equal(t, binder.StateIdle, c.State())

	_, err = c.Begin(ctx, "OtherNet")
	require.NoError(t, err)
	assert.Len(t, p.Requests(), 2)
}

func TestLateLostIsDiscarded(t *testing.T) {
	p := sim.New(nil)
	rec := &recorder{}
	c := binder.New(p, binder.WithObserver(rec), binder.WithClearOnLost(false))
	ctx := waitCtx(t)

	a, err := c.Begin(ctx, "HomeNet")
	require.NoError(t, err)

	require.NoError(t, p.Fire(binder.Event{Kind: binder.EventAvailable, Handle: 1}))
	require.NoError(t, p.Fire(binder.Event{Kind: binder.EventLost, Handle: 1}))

	out, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, binder.Bound(1), out)
	assert.Equal(t, []binder.Outcome{binder.Bound(1)}, rec.outcomes())

	bound, ok := c.Bound()
	require.True(t, ok)
	assert.Equal(t, binder.Handle(1), bound.Handle)
	assert.Equal(t, 0, p.ClearCount())
}

func TestDuplicateEventsSettleOnce(t *testing.T) {
	p := sim.New(nil)
	rec := &recorder{}
	c := binder.New(p, binder.WithObserver(rec))
	ctx := waitCtx(t)

	a, err := c.Begin(ctx, "HomeNet")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kinds := []binder.EventKind{binder.EventAvailable, binder.EventUnavailable, binder.EventAvailable, binder.EventLost}
			_ = p.Fire(binder.Event{Kind: kinds[i%len(kinds)], Handle: 9})
		}(i)
	}
	wg.Wait()

	_, err = a.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, rec.outcomes(), 1)

	installs := 0
	for _, h := range p.Overrides() {
		if h != nil {
			installs++
		}
	}
	assert.LessOrEqual(t, installs, 1)
}

func TestLostBeforeBind(t *testing.T) {
	p := sim.New(nil)
	c := binder.New(p)
	ctx := waitCtx(t)

	a, err := c.Begin(ctx, "HomeNet")
	require.NoError(t, err)
	require.NoError(t, p.Fire(binder.Event{Kind: binder.EventLost, Handle: 7}))

	out, err := a.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, binder.Lost(7), out)
	assert.False(t, out.OK())

	_, ok := c.Bound()
	assert.False(t, ok)
	assert.Empty(t, p.Overrides())
	assert.True(t, p.Requests()[0].Released())
}

func TestRequestTimeoutIsUnreachable(t *testing.T) {
	p := sim.New(nil)
	c := binder.New(p, binder.WithRequestTimeout(20*time.Millisecond))

	out, err := c.RequestBind(waitCtx(t), "Nowhere")
	require.NoError(t, err)
	assert.Equal(t, binder.StatusUnreachable, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, 20*time.Millisecond, p.Requests()[0].Criteria.Timeout)
	assert.True(t, p.Requests()[0].Released())
}

func TestPlatformRequestErrorIsUnreachable(t *testing.T) {
	p := sim.New(nil)
	p.FailRequests(errors.New("connectivity service gone"))
	c := binder.New(p)

	out, err := c.RequestBind(waitCtx(t), "HomeNet")
	require.NoError(t, err)
	assert.Equal(t, binder.StatusUnreachable, out.Status)
	assert.ErrorIs(t, out.Err, binder.ErrPlatformUnavailable)
	assert.Equal(t, binder.StateIdle, c.State())
}

func TestInstallOverrideFailureIsUnreachable(t *testing.T) {
	p := sim.New(map[string]sim.Network{"HomeNet": {Handle: 3}})
	p.FailOverrides(errors.New("permission denied"))
	c := binder.New(p)

	out, err := c.RequestBind(waitCtx(t), "HomeNet")
	require.NoError(t, err)
	assert.Equal(t, binder.StatusUnreachable, out.Status)
	assert.ErrorIs(t, out.Err, binder.ErrPlatformUnavailable)

	_, ok := c.Bound()
	assert.False(t, ok)
	assert.True(t, p.Requests()[0].Released())
}

func TestUnbindFailureKeepsBinding(t *testing.T) {
	p := sim.New(map[string]sim.Network{"HomeNet": {Handle: 5}})
	c := binder.New(p)
	ctx := waitCtx(t)

	_, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)

	p.FailClears(errors.New("netd refused"))
	released, err := c.RequestUnbind(ctx)
	require.ErrorIs(t, err, binder.ErrUnbindFailed)
	assert.False(t, released)

	var ue *binder.UnbindError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, binder.Handle(5), ue.Handle)

	_, ok := c.Bound()
	assert.True(t, ok)
	assert.False(t, p.Requests()[0].Released())

	p.FailClears(nil)
	released, err = c.RequestUnbind(ctx)
	require.NoError(t, err)
	assert.True(t, released)
	assert.True(t, p.Requests()[0].Released())
}

func TestBoundNetworkLostClearsOverride(t *testing.T) {
	p := sim.New(map[string]sim.Network{"HomeNet": {Handle: 11}})
	rec := &recorder{}
	c := binder.New(p, binder.WithObserver(rec))
	ctx := waitCtx(t)

	out, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)
	require.True(t, out.OK())

	p.Lose(11)

	assert.Equal(t, binder.StateIdle, c.State())
	assert.Equal(t, 1, p.ClearCount())
	assert.Equal(t, []binder.ReleaseReason{binder.ReleaseLost}, rec.releases())
	assert.True(t, p.Requests()[0].Released())

	released, err := c.RequestUnbind(ctx)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLostClearFailureKeepsBinding(t *testing.T) {
	p := sim.New(map[string]sim.Network{"HomeNet": {Handle: 11}})
	rec := &recorder{}
	c := binder.New(p, binder.WithObserver(rec))
	ctx := waitCtx(t)

	_, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)

	p.FailClears(errors.New("route table busy"))
	p.Lose(11)

	assert.Equal(t, binder.StateBound, c.State())
	assert.Equal(t, 1, p.ClearCount())
	assert.Empty(t, rec.releases())
	assert.False(t, p.Requests()[0].Released())

	_, err = c.RequestUnbind(ctx)
	require.ErrorIs(t, err, binder.ErrUnbindFailed)

	p.FailClears(nil)
	released, err := c.RequestUnbind(ctx)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 3, p.ClearCount())
	assert.Equal(t, []binder.ReleaseReason{binder.ReleaseUnbind}, rec.releases())
	assert.True(t, p.Requests()[0].Released())
	_, installed := p.Installed()
	assert.False(t, installed)
}

func TestBoundNetworkLostKeptWhenConfigured(t *testing.T) {
	p := sim.New(map[string]sim.Network{"HomeNet": {Handle: 11}})
	c := binder.New(p, binder.WithClearOnLost(false))
	ctx := waitCtx(t)

	_, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)

	p.Lose(11)
	assert.Equal(t, binder.StateBound, c.State())
	assert.Equal(t, 0, p.ClearCount())

	released, err := c.RequestUnbind(ctx)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestFailedBindKeepsPreviousBinding(t *testing.T) {
	p := sim.New(map[string]sim.Network{
		"HomeNet":  {Handle: 1},
		"GuestNet": {Result: sim.ResultUnavailable},
	})
	c := binder.New(p)
	ctx := waitCtx(t)

	_, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)

	out, err := c.RequestBind(ctx, "GuestNet")
	require.NoError(t, err)
	assert.Equal(t, binder.StatusUnreachable, out.Status)

	bound, ok := c.Bound()
	require.True(t, ok)
	assert.Equal(t, "HomeNet", bound.Identifier)
	installed, _ := p.Installed()
	assert.Equal(t, binder.Handle(1), installed)
}

func TestSuccessfulBindSupersedes(t *testing.T) {
	p := sim.New(map[string]sim.Network{
		"HomeNet":  {Handle: 1},
		"GuestNet": {Handle: 2},
	})
	rec := &recorder{}
	c := binder.New(p, binder.WithObserver(rec))
	ctx := waitCtx(t)

	_, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)
	out, err := c.RequestBind(ctx, "GuestNet")
	require.NoError(t, err)
	assert.Equal(t, binder.Bound(2), out)

	bound, ok := c.Bound()
	require.True(t, ok)
	assert.Equal(t, "GuestNet", bound.Identifier)

	requests := p.Requests()
	require.Len(t, requests, 2)
	assert.True(t, requests[0].Released())
	assert.False(t, requests[1].Released())
	assert.Equal(t, []binder.ReleaseReason{binder.ReleaseSuperseded}, rec.releases())

	// the old network disappearing must not touch the new binding
	p.Lose(1)
	assert.Equal(t, binder.StateBound, c.State())
}

func TestWaitGivesUpWithoutCancelling(t *testing.T) {
	p := sim.New(nil)
	c := binder.New(p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.RequestBind(ctx, "HomeNet")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, binder.StatePending, c.State())

	require.NoError(t, p.Fire(binder.Event{Kind: binder.EventAvailable, Handle: 4}))
	assert.Equal(t, binder.StateBound, c.State())

	released, err := c.RequestUnbind(context.Background())
	require.NoError(t, err)
	assert.True(t, released)
}

func TestCloseReleasesBinding(t *testing.T) {
	p := sim.New(map[string]sim.Network{"HomeNet": {Handle: 8}})
	rec := &recorder{}
	c := binder.New(p, binder.WithObserver(rec))
	ctx := waitCtx(t)

	_, err := c.RequestBind(ctx, "HomeNet")
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	assert.Equal(t, binder.StateIdle, c.State())
	assert.Equal(t, []binder.ReleaseReason{binder.ReleaseClosed}, rec.releases())
	require.NoError(t, c.Close(ctx))
}

// eagerPlatform answers before RequestNetwork returns.
type eagerPlatform struct {
	event    binder.Event
	released atomic.Int32
	panics   bool
}

func (e *eagerPlatform) RequestNetwork(ctx context.Context, criteria binder.Criteria, notify func(binder.Event)) (binder.Registration, error) {
	if e.panics {
		panic("binder service died")
	}
	notify(e.event)
	return binder.RegistrationFunc(func() { e.released.Add(1) }), nil
}

func (e *eagerPlatform) InstallOverride(ctx context.Context, handle *binder.Handle) error {
	return nil
}

func TestEventBeforeRegistrationReturns(t *testing.T) {
	t.Run("unavailable releases late registration", func(t *testing.T) {
		p := &eagerPlatform{event: binder.Event{Kind: binder.EventUnavailable}}
		c := binder.New(p)

		out, err := c.RequestBind(waitCtx(t), "HomeNet")
		require.NoError(t, err)
		assert.Equal(t, binder.StatusUnreachable, out.Status)
		assert.Equal(t, int32(1), p.released.Load())
	})

	t.Run("available keeps registration until unbind", func(t *testing.T) {
		p := &eagerPlatform{event: binder.Event{Kind: binder.EventAvailable, Handle: 6}}
		c := binder.New(p)
		ctx := waitCtx(t)

		out, err := c.RequestBind(ctx, "HomeNet")
		require.NoError(t, err)
		assert.Equal(t, binder.Bound(6), out)
		assert.Equal(t, int32(0), p.released.Load())

		released, err := c.RequestUnbind(ctx)
		require.NoError(t, err)
		assert.True(t, released)
		assert.Equal(t, int32(1), p.released.Load())
	})

	t.Run("panic is unreachable", func(t *testing.T) {
		p := &eagerPlatform{panics: true}
		c := binder.New(p)

		out, err := c.RequestBind(waitCtx(t), "HomeNet")
		require.NoError(t, err)
		assert.Equal(t, binder.StatusUnreachable, out.Status)
		assert.ErrorIs(t, out.Err, binder.ErrPlatformUnavailable)
	})
}
