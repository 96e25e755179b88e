package northbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/logger"
)

const (
	MethodBind        = "bindNetwork"
	MethodUnbind      = "unbindNetwork"
	MethodStatus      = "status"
	MethodLogLevels   = "getLogLevels"
	MethodSetLogLevel = "setLogLevel"
)

// Coordinator is the part of binder.Coordinator the command surface drives.
type Coordinator interface {
	RequestBind(ctx context.Context, identifier string) (binder.Outcome, error)
	RequestUnbind(ctx context.Context) (bool, error)
	Snapshot() binder.Snapshot
}

type BindParams struct {
	SSID string `json:"ssid"`
}

// SetLogLevelParams overrides the level of one logger component. An empty
// level removes the override.
type SetLogLevelParams struct {
	Component string          `json:"component"`
	Level     logger.LogLevel `json:"level,omitempty"`
}

type LogLevels struct {
	Default    logger.LogLevel            `json:"default"`
	Components map[string]logger.LogLevel `json:"components"`
}

type Option func(*Adapter)

// WithBindTimeout bounds how long Bind waits for an outcome. The attempt
// itself is not cancelled when the wait gives up.
func WithBindTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		a.bindTimeout = d
	}
}

// Adapter maps the two northbound commands onto the coordinator and turns its
// errors into coded CallErrors.
type Adapter struct {
	logger      *slog.Logger
	coordinator Coordinator
	bindTimeout time.Duration
}

func NewAdapter(coordinator Coordinator, opts ...Option) *Adapter {
	a := &Adapter{
		logger:      logger.Get(logger.Northbound),
		coordinator: coordinator,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func Methods() []string {
	methods := []string{MethodBind, MethodUnbind, MethodStatus, MethodLogLevels, MethodSetLogLevel}
	sort.Strings(methods)
	return methods
}

// Bind reports true only when the network was bound. Lost and unreachable
// outcomes are a successful call answering false.
func (a *Adapter) Bind(ctx context.Context, ssid string) (bool, error) {
	if ssid == "" {
		return false, newCallError(CodeNoSSID, "ssid is required")
	}

	if a.bindTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.bindTimeout)
		defer cancel()
	}

	outcome, err := a.coordinator.RequestBind(ctx, ssid)
	if err != nil {
		return false, a.bindError(ssid, err)
	}

	if !outcome.OK() {
		a.logger.Info("Bind did not succeed", "ssid", ssid, "outcome", outcome)
		return false, nil
	}

	a.logger.Info("Bind succeeded", "ssid", ssid, "handle", outcome.Handle)
	return true, nil
}

func (a *Adapter) bindError(ssid string, err error) *CallError {
	switch {
	case errors.Is(err, binder.ErrInvalidArgument):
		return newCallError(CodeNoSSID, "%v", err)
	case errors.Is(err, binder.ErrAlreadyInProgress):
		return newCallError(CodeBindInProgress, "a bind request is already pending")
	case errors.Is(err, context.DeadlineExceeded):
		a.logger.Warn("Gave up waiting for bind outcome", "ssid", ssid)
		return newCallError(CodeBindError, "timed out waiting for network %q", ssid)
	default:
		a.logger.Error("Bind failed", "ssid", ssid, "error", err)
		return newCallError(CodeBindError, "%v", err)
	}
}

func (a *Adapter) Unbind(ctx context.Context) (bool, error) {
	released, err := a.coordinator.RequestUnbind(ctx)
	if err != nil {
		ce := newCallError(CodeUnbindError, "%v", err)
		var ue *binder.UnbindError
		if errors.As(err, &ue) {
			ce.Details = map[string]any{"handle": uint64(ue.Handle)}
		}
		a.logger.Error("Unbind failed", "error", err)
		return false, ce
	}
	return released, nil
}

func (a *Adapter) Status() binder.Snapshot {
	return a.coordinator.Snapshot()
}

func (a *Adapter) LogLevels() LogLevels {
	return LogLevels{
		Default:    logger.GetDefaultLevel(),
		Components: logger.GetComponentLevels(),
	}
}

func (a *Adapter) SetLogLevel(component string, level logger.LogLevel) (LogLevels, error) {
	if component == "" {
		return LogLevels{}, newCallError(CodeInvalidParams, "component is required")
	}

	switch level {
	case "":
		logger.ClearComponentLevel(component)
		a.logger.Info("Cleared log level override", "target", component)
	case logger.LogLevelDebug, logger.LogLevelInfo, logger.LogLevelWarn, logger.LogLevelError:
		logger.SetComponentLevel(component, level)
		a.logger.Info("Set log level", "target", component, "level", level)
	default:
		return LogLevels{}, newCallError(CodeInvalidParams, "unknown log level %q", level)
	}

	return a.LogLevels(), nil
}

// Call dispatches a named method with JSON params, the way the method channel
// of a host application would.
func (a *Adapter) Call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	a.logger.Debug("Dispatching call", "method", method)

	switch method {
	case MethodBind:
		var p BindParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return a.Bind(ctx, p.SSID)
	case MethodUnbind:
		return a.Unbind(ctx)
	case MethodStatus:
		return a.Status(), nil
	case MethodLogLevels:
		return a.LogLevels(), nil
	case MethodSetLogLevel:
		var p SetLogLevelParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return a.SetLogLevel(p.Component, p.Level)
	default:
		return nil, newCallError(CodeNotImplemented, "method %q is not implemented", method)
	}
}

func decodeParams(params json.RawMessage, v any) error {
	if len(bytes.TrimSpace(params)) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return newCallError(CodeInvalidParams, "invalid params: %v", err)
	}
	return nil
}
