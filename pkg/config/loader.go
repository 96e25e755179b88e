package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/pkg/platform/sim"
)

const (
	DefaultBindTimeout  = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
	DefaultBufferSize   = 1024
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.decodePlugins(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// decodePlugins converts every plugins.<namespace> section with a registered
// type into that type. Unknown namespaces stay raw maps.
func (c *Config) decodePlugins() error {
	for namespace, raw := range c.Plugins {
		cfgType, ok := getPluginConfigType(namespace)
		if !ok {
			continue
		}

		pluginData, err := yaml.Marshal(raw)
		if err != nil {
			return fmt.Errorf("marshal plugin config for %s: %w", namespace, err)
		}

		typed := reflect.New(cfgType).Interface()
		if err := yaml.Unmarshal(pluginData, typed); err != nil {
			return fmt.Errorf("unmarshal plugin config for %s: %w", namespace, err)
		}

		SetPluginConfig(namespace, typed)
		c.Plugins[namespace] = typed
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = logger.LogLevelInfo
	}

	if c.Platform.Driver == "" {
		c.Platform.Driver = DriverNetlink
	}
	if c.Platform.Strategy == "" {
		c.Platform.Strategy = "route"
	}
	if c.Platform.PollInterval == 0 {
		c.Platform.PollInterval = DefaultPollInterval
	}
	if c.Platform.Transport == "" {
		c.Platform.Transport = "wifi"
	}

	if c.Binder.BindTimeout == 0 {
		c.Binder.BindTimeout = DefaultBindTimeout
	}

	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = DefaultBufferSize
	}
}

func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}

	switch c.Platform.Driver {
	case DriverNetlink, DriverSim:
	default:
		return fmt.Errorf("platform.driver: unknown driver %q", c.Platform.Driver)
	}

	switch c.Platform.Strategy {
	case "route":
	case "socket":
		// socket pins only sockets dialed through procnet in the same process,
		// and the daemon dials none for its clients.
		if c.Platform.Driver == DriverNetlink {
			return fmt.Errorf("platform.strategy: %q has no effect on other processes, use \"route\"", c.Platform.Strategy)
		}
	default:
		return fmt.Errorf("platform.strategy: unknown strategy %q", c.Platform.Strategy)
	}

	switch c.Platform.Transport {
	case "wifi", "ethernet":
	default:
		return fmt.Errorf("platform.transport: unknown transport %q", c.Platform.Transport)
	}

	if c.Platform.PollInterval < 0 {
		return fmt.Errorf("platform.poll_interval must not be negative")
	}
	if c.Platform.RouteMetric < 0 {
		return fmt.Errorf("platform.route_metric must not be negative")
	}

	for ssid, n := range c.Platform.Networks {
		if ssid == "" {
			return fmt.Errorf("platform.networks: empty ssid")
		}
		switch n.Result {
		case "", sim.ResultAvailable, sim.ResultUnavailable, sim.ResultLost, sim.ResultSilent:
		default:
			return fmt.Errorf("platform.networks.%s.result: unknown result %q", ssid, n.Result)
		}
		if n.Delay < 0 {
			return fmt.Errorf("platform.networks.%s.delay must not be negative", ssid)
		}
	}

	if c.Binder.RequestTimeout < 0 {
		return fmt.Errorf("binder.request_timeout must not be negative")
	}
	if c.Binder.BindTimeout < 0 {
		return fmt.Errorf("binder.bind_timeout must not be negative")
	}

	if c.Events.BufferSize < 0 {
		return fmt.Errorf("events.buffer_size must not be negative")
	}

	return nil
}
