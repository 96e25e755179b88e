package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veesix-networks/netbind/pkg/component"
	"github.com/veesix-networks/netbind/pkg/config"
	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/pkg/northbound"
)

type Component struct {
	*component.Base
	logger  *slog.Logger
	adapter *northbound.Adapter
	limiter *rate.Limiter
	addr    string
	server  *http.Server
	mu      sync.RWMutex
	running bool
}

func NewComponent(deps component.Dependencies) (component.Component, error) {
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

	var opts []northbound.Option
	if deps.Config != nil {
		opts = append(opts, northbound.WithBindTimeout(deps.Config.Binder.BindTimeout))
	}

	return New(*pluginCfg, northbound.NewAdapter(deps.Coordinator, opts...)), nil
}

func New(cfg Config, adapter *northbound.Adapter) *Component {
	addr := ":8080"
	if cfg.ListenAddress != "" {
		addr = cfg.ListenAddress
	}

	limit := rate.Inf
	if cfg.BindRate > 0 {
		limit = rate.Limit(cfg.BindRate)
	}
	burst := cfg.BindBurst
	if burst <= 0 {
		burst = 1
	}

	return &Component{
		Base:    component.NewBase(Namespace),
		logger:  logger.Get(logger.API),
		adapter: adapter,
		limiter: rate.NewLimiter(limit, burst),
		addr:    addr,
	}
}

func (c *Component) Start(ctx context.Context) error {
	c.StartContext(ctx)
	c.logger.Info("Starting API server", "addr", c.addr)

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.addr = ln.Addr().String()
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.running = true
	server := c.server
	c.mu.Unlock()

	c.Go(func() {
		c.serve(server, ln)
	})

	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	c.logger.Info("Stopping API server")

	c.mu.RLock()
	server := c.server
	c.mu.RUnlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("API server shutdown", "error", err)
		}
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.StopContext()
	return nil
}

func (c *Component) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

func (c *Component) GetStatus() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := "stopped"
	if c.running {
		state = "running"
	}

	return &Status{
		State:         state,
		ListenAddress: c.addr,
		Running:       c.running,
	}
}

func (c *Component) Status() any {
	return c.GetStatus()
}

func (c *Component) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api", c.handlePaths)
	mux.HandleFunc("GET /api/status", c.handleStatus)
	mux.HandleFunc("GET /api/openapi.json", c.handleOpenAPI)
	mux.HandleFunc("POST /api/bind", c.handleBind)
	mux.HandleFunc("POST /api/unbind", c.handleUnbind)
	mux.HandleFunc("POST /api/call/{method}", c.handleCall)

	return mux
}

func (c *Component) serve(server *http.Server, ln net.Listener) {
	c.logger.Info("API server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		c.logger.Error("API server error", "error", err)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}
}
