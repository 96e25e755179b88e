//go:build linux

package linuxnet

import (
	"context"
	"log/slog"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/veesix-networks/netbind/pkg/binder"
)

// watch follows one acquisition request. Association changes do not always
// produce an rtnetlink update, so links are also rescanned periodically.
type watch struct {
	platform *Platform
	criteria binder.Criteria
	notify   func(binder.Event)
	updates  <-chan netlink.LinkUpdate
	logger   *slog.Logger

	current int
}

func (w *watch) run(ctx context.Context) {
	ticker := time.NewTicker(w.platform.cfg.PollInterval)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if w.criteria.Timeout > 0 {
		timer := time.NewTimer(w.criteria.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			timeout = nil
			if w.current == 0 {
				w.logger.Info("No matching network before timeout", "timeout", w.criteria.Timeout)
				w.notify(binder.Event{Kind: binder.EventUnavailable})
			}
		case u, ok := <-w.updates:
			if !ok {
				w.logger.Warn("Link subscription closed")
				if w.current != 0 {
					w.lose()
				}
				return
			}
			w.evaluate(u.Link)
		case <-ticker.C:
			w.rescan()
		}
	}
}

func (w *watch) evaluate(link netlink.Link) {
	index := link.Attrs().Index

	if w.current == 0 {
		if w.platform.matches(link, w.criteria) {
			w.current = index
			w.logger.Info("Network available", "interface", link.Attrs().Name, "index", index)
			w.notify(binder.Event{Kind: binder.EventAvailable, Handle: binder.Handle(index)})
		}
		return
	}

	if index == w.current && !w.platform.matches(link, w.criteria) {
		w.logger.Info("Network lost", "interface", link.Attrs().Name, "index", index)
		w.lose()
	}
}

func (w *watch) rescan() {
	links, err := w.platform.linkList()
	if err != nil {
		w.logger.Warn("Failed to list links", "error", err)
		return
	}

	seen := false
	for _, link := range links {
		if w.current != 0 && link.Attrs().Index == w.current {
			seen = true
		}
		w.evaluate(link)
	}

	if w.current != 0 && !seen {
		w.logger.Info("Network link removed", "index", w.current)
		w.lose()
	}
}

func (w *watch) lose() {
	index := w.current
	w.current = 0
	w.notify(binder.Event{Kind: binder.EventLost, Handle: binder.Handle(index)})
}
