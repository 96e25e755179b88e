package events

import "time"

// BindEvent is published once per settled bind attempt.
type BindEvent struct {
	RequestID  string        `json:"request_id"`
	Identifier string        `json:"ssid"`
	Outcome    string        `json:"outcome"`
	Handle     uint64        `json:"handle,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ReleaseEvent is published when the bound network stops being the route
// override, whatever the reason.
type ReleaseEvent struct {
	RequestID  string        `json:"request_id"`
	Identifier string        `json:"ssid"`
	Handle     uint64        `json:"handle"`
	Reason     string        `json:"reason"`
	BoundFor   time.Duration `json:"bound_for"`
}
