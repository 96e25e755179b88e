// Package sim is an in-memory binder.Platform. It records every call made by
// the coordinator and lets callers script or fire acquisition events, so the
// daemon can run without a wireless stack and tests can drive any ordering.
package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/logger"
)

type Result string

const (
	ResultAvailable   Result = "available"
	ResultUnavailable Result = "unavailable"
	ResultLost        Result = "lost"
	ResultSilent      Result = "silent"
)

// Network scripts how a request for one identifier is answered.
type Network struct {
	Handle binder.Handle `yaml:"handle"`
	Delay  time.Duration `yaml:"delay"`
	Result Result        `yaml:"result"`
}

type Request struct {
	Criteria binder.Criteria
	mu       *sync.Mutex
	notify   func(binder.Event)
	released bool
	timers   []*time.Timer
}

func (r *Request) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

type Platform struct {
	logger *slog.Logger

	mu          sync.Mutex
	networks    map[string]Network
	requests    []*Request
	overrides   []*binder.Handle
	installed   *binder.Handle
	requestErr  error
	overrideErr error
	clearErr    error
}

func New(networks map[string]Network) *Platform {
	if networks == nil {
		networks = make(map[string]Network)
	}
	return &Platform{
		logger:   logger.Get(logger.PlatformSim),
		networks: networks,
	}
}

func (p *Platform) AddNetwork(identifier string, n Network) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.networks[identifier] = n
}

func (p *Platform) FailRequests(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestErr = err
}

// FailOverrides makes InstallOverride with a non-nil handle fail.
func (p *Platform) FailOverrides(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrideErr = err
}

// FailClears makes InstallOverride(nil) fail.
func (p *Platform) FailClears(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearErr = err
}

func (p *Platform) RequestNetwork(ctx context.Context, criteria binder.Criteria, notify func(binder.Event)) (binder.Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.requestErr != nil {
		return nil, p.requestErr
	}

	req := &Request{Criteria: criteria, mu: &p.mu, notify: notify}
	p.requests = append(p.requests, req)

	if n, ok := p.networks[criteria.Identifier]; ok {
		p.schedule(req, n)
	} else if criteria.Timeout > 0 {
		p.schedule(req, Network{Delay: criteria.Timeout, Result: ResultUnavailable})
	}

	p.logger.Debug("Registered network request", "ssid", criteria.Identifier, "transport", criteria.Transport)

	return binder.RegistrationFunc(func() { p.release(req) }), nil
}

func (p *Platform) InstallOverride(ctx context.Context, handle *binder.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var recorded *binder.Handle
	if handle != nil {
		h := *handle
		recorded = &h
	}
	p.overrides = append(p.overrides, recorded)

	if recorded == nil && p.clearErr != nil {
		return p.clearErr
	}
	if recorded != nil && p.overrideErr != nil {
		return p.overrideErr
	}

	p.installed = recorded
	return nil
}

func (p *Platform) schedule(req *Request, n Network) {
	var ev binder.Event
	switch n.Result {
	case ResultAvailable, "":
		ev = binder.Event{Kind: binder.EventAvailable, Handle: n.Handle}
	case ResultLost:
		ev = binder.Event{Kind: binder.EventLost, Handle: n.Handle}
	case ResultUnavailable:
		ev = binder.Event{Kind: binder.EventUnavailable}
	default:
		return
	}

	req.timers = append(req.timers, time.AfterFunc(n.Delay, func() {
		p.deliver(req, ev)
	}))
}

// Fire delivers ev to the most recent request, released or not.
func (p *Platform) Fire(ev binder.Event) error {
	p.mu.Lock()
	if len(p.requests) == 0 {
		p.mu.Unlock()
		return errors.New("no network request registered")
	}
	req := p.requests[len(p.requests)-1]
	p.mu.Unlock()

	req.notify(ev)
	return nil
}

// Lose reports handle as lost to every registration that is still active.
func (p *Platform) Lose(handle binder.Handle) {
	p.mu.Lock()
	active := make([]*Request, 0, len(p.requests))
	for _, req := range p.requests {
		if !req.released {
			active = append(active, req)
		}
	}
	p.mu.Unlock()

	for _, req := range active {
		req.notify(binder.Event{Kind: binder.EventLost, Handle: handle})
	}
}

func (p *Platform) deliver(req *Request, ev binder.Event) {
	p.mu.Lock()
	released := req.released
	p.mu.Unlock()

	if released {
		return
	}
	req.notify(ev)
}

func (p *Platform) release(req *Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req.released = true
	for _, t := range req.timers {
		t.Stop()
	}
}

func (p *Platform) Requests() []*Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *Platform) Overrides() []*binder.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*binder.Handle, len(p.overrides))
	copy(out, p.overrides)
	return out
}

// ClearCount returns how many times InstallOverride(nil) was called.
func (p *Platform) ClearCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, h := range p.overrides {
		if h == nil {
			n++
		}
	}
	return n
}

func (p *Platform) Installed() (binder.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.installed == nil {
		return 0, false
	}
	return *p.installed, true
}
