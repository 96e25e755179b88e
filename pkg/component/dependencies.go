package component

import (
	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/config"
	"github.com/veesix-networks/netbind/pkg/events"
)

type Dependencies struct {
	EventBus    events.Bus
	Config      *config.Config
	Coordinator *binder.Coordinator
}
