package binding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/component"
	"github.com/veesix-networks/netbind/pkg/config"
	"github.com/veesix-networks/netbind/pkg/events"
	"github.com/veesix-networks/netbind/pkg/logger"
)

const Name = "binder"

// Component runs the binding coordinator inside the daemon lifecycle and
// publishes every settlement and release on the event bus.
type Component struct {
	*component.Base

	logger      *slog.Logger
	eventBus    events.Bus
	cfg         config.BinderConfig
	coordinator *binder.Coordinator
}

func New(deps component.Dependencies, platform binder.Platform) (*Component, error) {
	if platform == nil {
		return nil, fmt.Errorf("binder component requires a platform")
	}

	var cfg config.BinderConfig
	transport := binder.TransportWiFi
	if deps.Config != nil {
		cfg = deps.Config.Binder
		if deps.Config.Platform.Transport != "" {
			transport = binder.Transport(deps.Config.Platform.Transport)
		}
	}

	c := &Component{
		Base:     component.NewBase(Name),
		logger:   logger.Get(logger.Binder),
		eventBus: deps.EventBus,
		cfg:      cfg,
	}

	c.coordinator = binder.New(platform,
		binder.WithObserver(c),
		binder.WithRequestTimeout(cfg.RequestTimeout),
		binder.WithTransport(transport),
		binder.WithClearOnLost(cfg.ClearOnLostEnabled()),
	)

	return c, nil
}

func (c *Component) Coordinator() *binder.Coordinator {
	return c.coordinator
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting binder", "auto_bind", c.cfg.AutoBind, "clear_on_lost", c.cfg.ClearOnLostEnabled())

	if c.cfg.AutoBind != "" {
		c.Go(c.autoBind)
	}

	return nil
}

// Stop releases the bound network so the host routing is left as it was
// found. A bind still pending is abandoned.
func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping binder")

	c.StopContext()

	if err := c.coordinator.Close(ctx); err != nil {
		return fmt.Errorf("release bound network: %w", err)
	}
	return nil
}

func (c *Component) autoBind() {
	ctx := c.Ctx
	if c.cfg.BindTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.BindTimeout)
		defer cancel()
	}

	outcome, err := c.coordinator.RequestBind(ctx, c.cfg.AutoBind)
	if err != nil {
		c.logger.Warn("Auto bind did not complete", "ssid", c.cfg.AutoBind, "error", err)
		return
	}
	c.logger.Info("Auto bind finished", "ssid", c.cfg.AutoBind, "outcome", outcome)
}

func (c *Component) Status() any {
	return c.coordinator.Snapshot()
}

func (c *Component) Settled(a *binder.Attempt, o binder.Outcome) {
	if c.eventBus == nil {
		return
	}

	data := &events.BindEvent{
		RequestID:  a.ID(),
		Identifier: a.Identifier(),
		Outcome:    o.Status.String(),
		Handle:     uint64(o.Handle),
		Duration:   time.Since(a.Started()),
	}
	if o.Err != nil {
		data.Error = o.Err.Error()
	}

	c.eventBus.Publish(events.TopicBind, events.Event{
		Source: Name,
		Data:   data,
	})
}

func (c *Component) Released(b binder.BoundNetwork, reason binder.ReleaseReason) {
	if c.eventBus == nil {
		return
	}

	topic := events.TopicUnbind
	if reason == binder.ReleaseLost {
		topic = events.TopicLost
	}

	c.eventBus.Publish(topic, events.Event{
		Source: Name,
		Data: &events.ReleaseEvent{
			RequestID:  b.RequestID,
			Identifier: b.Identifier,
			Handle:     uint64(b.Handle),
			Reason:     string(reason),
			BoundFor:   time.Since(b.BoundAt),
		},
	})
}
