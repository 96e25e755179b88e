package metrics

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veesix-networks/netbind/pkg/binder"
)

// Source is the state a MetricHandler reads at scrape time.
type Source interface {
	Snapshot() binder.Snapshot
}

type MetricHandler interface {
	Name() string
	Describe(ch chan<- *prometheus.Desc)
	Collect(src Source, ch chan<- prometheus.Metric) error
}

type MetricHandlerFactory func(logger *slog.Logger) (MetricHandler, error)

type MetricHandlerRegistry struct {
	mu        sync.RWMutex
	factories map[string]MetricHandlerFactory
}

var defaultRegistry = &MetricHandlerRegistry{
	factories: make(map[string]MetricHandlerFactory),
}

func DefaultRegistry() *MetricHandlerRegistry {
	return defaultRegistry
}

func Register(name string, factory MetricHandlerFactory) {
	defaultRegistry.RegisterFactory(name, factory)
}

func (r *MetricHandlerRegistry) RegisterFactory(name string, factory MetricHandlerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// CreateHandlers builds every registered handler in name order. A factory
// that fails is logged and skipped.
func (r *MetricHandlerRegistry) CreateHandlers(logger *slog.Logger) []MetricHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	handlers := make([]MetricHandler, 0, len(names))
	for _, name := range names {
		handler, err := r.factories[name](logger)
		if err != nil {
			logger.Error("Failed to create metric handler", "name", name, "error", err)
			continue
		}
		handlers = append(handlers, handler)
	}
	return handlers
}

// Collector adapts a set of MetricHandlers to prometheus.Collector.
type Collector struct {
	source   Source
	logger   *slog.Logger
	handlers []MetricHandler
}

func NewCollector(source Source, logger *slog.Logger, handlers []MetricHandler) *Collector {
	return &Collector{source: source, logger: logger, handlers: handlers}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, handler := range c.handlers {
		handler.Describe(ch)
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, handler := range c.handlers {
		if err := handler.Collect(c.source, ch); err != nil {
			c.logger.Error("Failed to collect metrics", "handler", handler.Name(), "error", err)
		}
	}
}
