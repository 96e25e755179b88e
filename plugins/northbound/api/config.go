package api

import (
	"github.com/veesix-networks/netbind/pkg/component"
	"github.com/veesix-networks/netbind/pkg/config"
)

const Namespace = "northbound.api"

type Config struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty"`
	// BindRate is the sustained number of bind requests accepted per second.
	// Zero disables rate limiting.
	BindRate  float64 `json:"bind_rate,omitempty" yaml:"bind_rate,omitempty"`
	BindBurst int     `json:"bind_burst,omitempty" yaml:"bind_burst,omitempty"`
}

func init() {
	config.RegisterPluginConfig(Namespace, Config{})

	component.Register(Namespace, NewComponent)
}
