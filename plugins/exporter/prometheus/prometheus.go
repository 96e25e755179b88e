package prometheus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/netbind/pkg/component"
	"github.com/veesix-networks/netbind/pkg/config"
	"github.com/veesix-networks/netbind/pkg/events"
	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/plugins/exporter/prometheus/metrics"
)

func init() {
	component.Register(Namespace, New)
}

type Status struct {
	State         string `json:"state"`
	ListenAddress string `json:"listen_address,omitempty"`
	HandlerCount  int    `json:"handler_count,omitempty"`
	ServerRunning bool   `json:"server_running,omitempty"`
}

type Component struct {
	*component.Base
	logger        *slog.Logger
	eventBus      events.Bus
	registry      *prometheus.Registry
	recorder      *metrics.EventRecorder
	subs          []events.Subscription
	addr          string
	server        *http.Server
	mu            sync.RWMutex
	handlerCount  int
	serverRunning bool
}

func New(deps component.Dependencies) (component.Component, error) {
	pluginCfgRaw, ok := config.GetPluginConfig(Namespace)
	if !ok {
		return nil, nil
	}

	pluginCfg, ok := pluginCfgRaw.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid config type for %s", Namespace)
	}

	if !pluginCfg.Enabled {
		return nil, nil
	}

	if deps.Coordinator == nil {
		return nil, fmt.Errorf("%s requires the binder coordinator", Namespace)
	}

	return NewExporter(*pluginCfg, deps.Coordinator, deps.EventBus), nil
}

func NewExporter(cfg Config, source metrics.Source, bus events.Bus) *Component {
	addr := ":9090"
	if cfg.ListenAddress != "" {
		addr = cfg.ListenAddress
	}

	log := logger.Get(logger.Exporter)
	handlers := metrics.DefaultRegistry().CreateHandlers(log)

	recorder := metrics.NewEventRecorder()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(source, log, handlers),
		recorder,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Component{
		Base:         component.NewBase(Namespace),
		logger:       log,
		eventBus:     bus,
		registry:     registry,
		recorder:     recorder,
		addr:         addr,
		handlerCount: len(handlers),
	}
}

func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

func (c *Component) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Component) GetStatus() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := "stopped"
	if c.serverRunning {
		state = "running"
	}

	return &Status{
		State:         state,
		ListenAddress: c.addr,
		HandlerCount:  c.handlerCount,
		ServerRunning: c.serverRunning,
	}
}

func (c *Component) Status() any {
	return c.GetStatus()
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting Prometheus exporter", "addr", c.addr, "handlers", c.handlerCount)

	if c.eventBus != nil {
		for _, topic := range []string{events.TopicBind, events.TopicUnbind, events.TopicLost} {
			c.subs = append(c.subs, c.eventBus.Subscribe(topic, c.recorder.Handle))
		}
	}

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		c.unsubscribe()
		return fmt.Errorf("listen on %s: %w", c.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.mu.Lock()
	c.addr = ln.Addr().String()
	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.serverRunning = true
	server := c.server
	c.mu.Unlock()

	c.Go(func() {
		c.logger.Info("Prometheus HTTP server listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Error("Prometheus HTTP server error", "error", err)
			c.mu.Lock()
			c.serverRunning = false
			c.mu.Unlock()
		}
	})

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping Prometheus exporter")

	c.unsubscribe()

	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Prometheus HTTP server shutdown", "error", err)
		}
	}

	c.mu.Lock()
	c.serverRunning = false
	c.mu.Unlock()

	c.StopContext()
	return nil
}

func (c *Component) unsubscribe() {
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
}
