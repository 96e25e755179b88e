package logger

const (
	Main       = "main"
	Binder     = "binder"
	Platform   = "platform"
	Procnet    = "procnet"
	Northbound = "nb"
	API        = "nb.api"
	Exporter   = "exporter"
	Events     = "events"
	Config     = "config"

	PlatformNetlink = "platform.netlink"
	PlatformSim     = "platform.sim"
)
