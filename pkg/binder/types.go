package binder

import (
	"fmt"
	"strconv"
	"time"
)

// Handle identifies a network as reported by the platform. The value is
// opaque to the coordinator.
type Handle uint64

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

type Status int

const (
	StatusUnreachable Status = iota
	StatusBound
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusBound:
		return "bound"
	case StatusLost:
		return "lost"
	default:
		return "unreachable"
	}
}

// Outcome is the single terminal result of a bind attempt. Err is only set
// for non-bound outcomes and explains why the override was not installed.
type Outcome struct {
	Status Status
	Handle Handle
	Err    error
}

func Bound(h Handle) Outcome {
	return Outcome{Status: StatusBound, Handle: h}
}

func Lost(h Handle) Outcome {
	return Outcome{Status: StatusLost, Handle: h}
}

func Unreachable(err error) Outcome {
	return Outcome{Status: StatusUnreachable, Err: err}
}

func (o Outcome) OK() bool {
	return o.Status == StatusBound
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusBound:
		return fmt.Sprintf("bound(%s)", o.Handle)
	case StatusLost:
		return fmt.Sprintf("lost(%s)", o.Handle)
	}
	if o.Err != nil {
		return "unreachable: " + o.Err.Error()
	}
	return "unreachable"
}

type State int

const (
	StateIdle State = iota
	StatePending
	StateBound
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBound:
		return "bound"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StateIdle
	case "pending":
		*s = StatePending
	case "bound":
		*s = StateBound
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

type Snapshot struct {
	State   State         `json:"state"`
	Pending string        `json:"pending,omitempty"`
	Bound   *BoundNetwork `json:"bound,omitempty"`
}

type BoundNetwork struct {
	Handle     Handle    `json:"handle"`
	Identifier string    `json:"ssid"`
	RequestID  string    `json:"request_id"`
	BoundAt    time.Time `json:"bound_at"`
}

type ReleaseReason string

const (
	ReleaseUnbind     ReleaseReason = "unbind"
	ReleaseLost       ReleaseReason = "lost"
	ReleaseSuperseded ReleaseReason = "superseded"
	ReleaseClosed     ReleaseReason = "closed"
)

// Observer is notified after the coordinator has changed state. Callbacks run
// outside the coordinator lock and may call back into it.
type Observer interface {
	Settled(a *Attempt, o Outcome)
	Released(b BoundNetwork, reason ReleaseReason)
}
