package component

import "context"

type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// StatusReporter is implemented by components that expose their runtime state
// through the status endpoint.
type StatusReporter interface {
	Status() any
}
