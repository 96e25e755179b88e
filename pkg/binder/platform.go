package binder

import (
	"context"
	"fmt"
	"time"
)

type Transport string

const (
	TransportWiFi     Transport = "wifi"
	TransportEthernet Transport = "ethernet"
)

// Criteria describes the network a bind attempt asks the platform for.
// Identifier matching is best effort: platforms that cannot filter by
// identifier match on Transport only.
type Criteria struct {
	Identifier string
	Transport  Transport
	Timeout    time.Duration
}

type EventKind int

const (
	EventAvailable EventKind = iota + 1
	EventLost
	EventUnavailable
)

func (k EventKind) String() string {
	switch k {
	case EventAvailable:
		return "available"
	case EventLost:
		return "lost"
	case EventUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type Event struct {
	Kind   EventKind
	Handle Handle
}

type Registration interface {
	Release()
}

// Platform is the host network subsystem.
//
// RequestNetwork registers an acquisition request and reports events through
// notify from any goroutine, possibly before it returns. Events keep flowing
// until the registration is released. InstallOverride routes process traffic
// through handle, or restores default routing when handle is nil; it must not
// call notify synchronously.
type Platform interface {
	RequestNetwork(ctx context.Context, criteria Criteria, notify func(Event)) (Registration, error)
	InstallOverride(ctx context.Context, handle *Handle) error
}

type RegistrationFunc func()

func (f RegistrationFunc) Release() {
	f()
}
