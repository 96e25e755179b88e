package linuxnet

import (
	"fmt"
	"time"

	"github.com/veesix-networks/netbind/pkg/procnet"
)

type Strategy string

const (
	// StrategySocket pins sockets created through procnet to the device.
	StrategySocket Strategy = "socket"
	// StrategyRoute replaces the host default route in the main table.
	StrategyRoute Strategy = "route"
)

type Config struct {
	Strategy     Strategy
	Namespace    string
	Interfaces   []string
	PollInterval time.Duration
	RouteMetric  int
	Binder       *procnet.Binder
}

func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategySocket
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Binder == nil {
		c.Binder = procnet.Default
	}
}

func (c *Config) validate() error {
	switch c.Strategy {
	case StrategySocket, StrategyRoute:
	default:
		return fmt.Errorf("unknown override strategy %q", c.Strategy)
	}
	if c.RouteMetric < 0 {
		return fmt.Errorf("route metric must not be negative")
	}
	return nil
}

func (c *Config) allowed(name string) bool {
	if len(c.Interfaces) == 0 {
		return true
	}
	for _, n := range c.Interfaces {
		if n == name {
			return true
		}
	}
	return false
}
