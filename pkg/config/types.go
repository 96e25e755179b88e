package config

import (
	"time"

	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/pkg/platform/sim"
)

type Config struct {
	Logging  LoggingConfig          `json:"logging,omitempty" yaml:"logging,omitempty"`
	Platform PlatformConfig         `json:"platform,omitempty" yaml:"platform,omitempty"`
	Binder   BinderConfig           `json:"binder,omitempty" yaml:"binder,omitempty"`
	Events   EventsConfig           `json:"events,omitempty" yaml:"events,omitempty"`
	Plugins  map[string]interface{} `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

type LoggingConfig struct {
	Format     string                     `json:"format,omitempty" yaml:"format,omitempty"`
	Level      logger.LogLevel            `json:"level,omitempty" yaml:"level,omitempty"`
	Components map[string]logger.LogLevel `json:"components,omitempty" yaml:"components,omitempty"`
}

type Driver string

const (
	DriverNetlink Driver = "netlink"
	DriverSim     Driver = "sim"
)

type PlatformConfig struct {
	Driver       Driver                 `json:"driver,omitempty" yaml:"driver,omitempty"`
	Strategy     string                 `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Namespace    string                 `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Interfaces   []string               `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	PollInterval time.Duration          `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	RouteMetric  int                    `json:"route_metric,omitempty" yaml:"route_metric,omitempty"`
	Transport    string                 `json:"transport,omitempty" yaml:"transport,omitempty"`
	Networks     map[string]sim.Network `json:"networks,omitempty" yaml:"networks,omitempty"`
}

type BinderConfig struct {
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	BindTimeout    time.Duration `json:"bind_timeout,omitempty" yaml:"bind_timeout,omitempty"`
	ClearOnLost    *bool         `json:"clear_on_lost,omitempty" yaml:"clear_on_lost,omitempty"`
	AutoBind       string        `json:"auto_bind,omitempty" yaml:"auto_bind,omitempty"`
}

// ClearOnLostEnabled reports the effective clear_on_lost setting, which
// defaults to true when unset.
func (b BinderConfig) ClearOnLostEnabled() bool {
	return b.ClearOnLost == nil || *b.ClearOnLost
}

type EventsConfig struct {
	BufferSize int  `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
	Debug      bool `json:"debug,omitempty" yaml:"debug,omitempty"`
}
