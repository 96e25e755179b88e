package prometheus

import "github.com/veesix-networks/netbind/pkg/config"

const Namespace = "exporter.prometheus"

type Config struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}

func init() {
	config.RegisterPluginConfig(Namespace, Config{})
}
