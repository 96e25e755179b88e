// Package all links every built-in plugin into the daemon.
package all

import (
	_ "github.com/veesix-networks/netbind/plugins/exporter/prometheus"
	_ "github.com/veesix-networks/netbind/plugins/northbound/api"
)
