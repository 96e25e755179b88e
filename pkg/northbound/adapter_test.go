package northbound

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/pkg/platform/sim"
)

func newAdapter(networks map[string]sim.Network, opts ...Option) (*Adapter, *sim.Platform, *binder.Coordinator) {
	platform := sim.New(networks)
	coord := binder.New(platform)
	return NewAdapter(coord, opts...), platform, coord
}

func requireCode(t *testing.T, err error, code Code) *CallError {
	t.Helper()
	var ce *CallError
	require.True(t, errors.As(err, &ce), "expected CallError, got %v", err)
	assert.Equal(t, code, ce.Code)
	assert.NotEmpty(t, ce.Message)
	return ce
}

func TestBindAndUnbind(t *testing.T) {
	a, platform, _ := newAdapter(map[string]sim.Network{
		"office": {Handle: 42, Result: sim.ResultAvailable},
	})
	ctx := context.Background()

	ok, err := a.Bind(ctx, "office")
	require.NoError(t, err)
	assert.True(t, ok)

	h, installed := platform.Installed()
	require.True(t, installed)
	assert.Equal(t, binder.Handle(42), h)

	ok, err = a.Unbind(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Unbind(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBindOutcomesThatAreNotErrors(t *testing.T) {
	a, _, _ := newAdapter(map[string]sim.Network{
		"gone":  {Handle: 1, Result: sim.ResultLost},
		"guest": {Result: sim.ResultUnavailable},
	})

	for _, ssid := range []string{"gone", "guest"} {
		ok, err := a.Bind(context.Background(), ssid)
		require.NoError(t, err, ssid)
		assert.False(t, ok, ssid)
	}
}

func TestBindErrors(t *testing.T) {
	t.Run("empty ssid", func(t *testing.T) {
		a, platform, _ := newAdapter(nil)
		_, err := a.Bind(context.Background(), "")
		requireCode(t, err, CodeNoSSID)
		assert.Empty(t, platform.Requests())
	})

	t.Run("in progress", func(t *testing.T) {
		a, _, coord := newAdapter(map[string]sim.Network{"slow": {Result: sim.ResultSilent}})
		_, err := coord.Begin(context.Background(), "slow")
		require.NoError(t, err)

		_, err = a.Bind(context.Background(), "slow")
		requireCode(t, err, CodeBindInProgress)
	})

	t.Run("timeout", func(t *testing.T) {
		a, _, coord := newAdapter(map[string]sim.Network{"slow": {Result: sim.ResultSilent}},
			WithBindTimeout(20*time.Millisecond))

		_, err := a.Bind(context.Background(), "slow")
		requireCode(t, err, CodeBindError)

		_, pending := coord.Pending()
		assert.True(t, pending)
	})
}

func TestUnbindError(t *testing.T) {
	a, platform, _ := newAdapter(map[string]sim.Network{
		"office": {Handle: 9, Result: sim.ResultAvailable},
	})
	ctx := context.Background()

	ok, err := a.Bind(ctx, "office")
	require.NoError(t, err)
	require.True(t, ok)

	platform.FailClears(errors.New("rtnetlink busy"))
	_, err = a.Unbind(ctx)
	ce := requireCode(t, err, CodeUnbindError)
	assert.Equal(t, map[string]any{"handle": uint64(9)}, ce.Details)

	platform.FailClears(nil)
	ok, err = a.Unbind(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCall(t *testing.T) {
	a, _, _ := newAdapter(map[string]sim.Network{
		"office": {Handle: 5, Result: sim.ResultAvailable},
	})
	ctx := context.Background()

	res, err := a.Call(ctx, MethodBind, json.RawMessage(`{"ssid":"office"}`))
	require.NoError(t, err)
	assert.Equal(t, true, res)

	res, err = a.Call(ctx, MethodStatus, nil)
	require.NoError(t, err)
	snap := res.(binder.Snapshot)
	assert.Equal(t, binder.StateBound, snap.State)
	require.NotNil(t, snap.Bound)
	assert.Equal(t, "office", snap.Bound.Identifier)

	res, err = a.Call(ctx, MethodUnbind, nil)
	require.NoError(t, err)
	assert.Equal(t, true, res)

	_, err = a.Call(ctx, MethodBind, nil)
	requireCode(t, err, CodeNoSSID)

	_, err = a.Call(ctx, MethodBind, json.RawMessage(`{"ssid":`))
	requireCode(t, err, CodeInvalidParams)

	_, err = a.Call(ctx, "openWifiSettings", nil)
	requireCode(t, err, CodeNotImplemented)
}

func TestCallErrorJSON(t *testing.T) {
	data, err := json.Marshal(&CallError{Code: CodeNoSSID, Message: "ssid is required"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"NO_SSID","message":"ssid is required"}`, string(data))
}

func TestLogLevels(t *testing.T) {
	logger.Configure("text", logger.LogLevelWarn, map[string]logger.LogLevel{"binder": logger.LogLevelDebug})
	t.Cleanup(func() { logger.Configure("text", logger.LogLevelInfo, nil) })

	a, _, _ := newAdapter(nil)
	ctx := context.Background()

	res, err := a.Call(ctx, MethodLogLevels, nil)
	require.NoError(t, err)
	assert.Equal(t, LogLevels{
		Default:    logger.LogLevelWarn,
		Components: map[string]logger.LogLevel{"binder": logger.LogLevelDebug},
	}, res)

	res, err = a.Call(ctx, MethodSetLogLevel, json.RawMessage(`{"component":"platform.netlink","level":"error"}`))
	require.NoError(t, err)
	assert.Equal(t, logger.LogLevelError, res.(LogLevels).Components["platform.netlink"])
	assert.Equal(t, logger.LogLevelError, logger.GetComponentLevels()["platform.netlink"])

	levels, err := a.SetLogLevel("binder", "")
	require.NoError(t, err)
	assert.NotContains(t, levels.Components, "binder")

	_, err = a.SetLogLevel("", logger.LogLevelDebug)
	requireCode(t, err, CodeInvalidParams)

	_, err = a.Call(ctx, MethodSetLogLevel, json.RawMessage(`{"component":"binder","level":"verbose"}`))
	requireCode(t, err, CodeInvalidParams)
	assert.NotContains(t, logger.GetComponentLevels(), "binder")
}

func TestMethodsListed(t *testing.T) {
	assert.Equal(t, []string{MethodBind, MethodLogLevels, MethodSetLogLevel, MethodStatus, MethodUnbind}, Methods())
}
