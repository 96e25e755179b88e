//go:build linux

package linuxnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/mdlayher/wifi"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/veesix-networks/netbind/pkg/binder"
	"github.com/veesix-networks/netbind/pkg/logger"
)

// rtnl is the subset of *netlink.Handle the platform uses.
type rtnl interface {
	LinkByIndex(index int) (netlink.Link, error)
	LinkList() ([]netlink.Link, error)
	RouteList(link netlink.Link, family int) ([]netlink.Route, error)
	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
	RouteDel(route *netlink.Route) error
	RouteReplace(route *netlink.Route) error
}

// Platform implements binder.Platform on top of rtnetlink, with nl80211 used
// to match a wireless link against the requested SSID.
type Platform struct {
	cfg    Config
	logger *slog.Logger

	netlinkHandle *netlink.Handle
	nl            rtnl
	ns            netns.NsHandle
	wifi          *wifi.Client
	sysClassNet   string

	mu        sync.Mutex
	installed *binder.Handle
	saved     []netlink.Route
	ours      *netlink.Route
}

func New(cfg Config) (*Platform, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		cfg:         cfg,
		logger:      logger.Get(logger.PlatformNetlink),
		ns:          netns.None(),
		sysClassNet: "/sys/class/net",
	}

	if cfg.Namespace != "" {
		ns, err := netns.GetFromName(cfg.Namespace)
		if err != nil {
			return nil, fmt.Errorf("open netns %q: %w", cfg.Namespace, err)
		}
		h, err := netlink.NewHandleAt(ns)
		if err != nil {
			ns.Close()
			return nil, fmt.Errorf("netlink handle in netns %q: %w", cfg.Namespace, err)
		}
		p.ns = ns
		p.netlinkHandle = h
	} else {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, fmt.Errorf("netlink handle: %w", err)
		}
		p.netlinkHandle = h
	}
	p.nl = p.netlinkHandle

	wc, err := wifi.New()
	if err != nil {
		p.logger.Warn("nl80211 unavailable, SSID matching disabled", "error", err)
	} else {
		p.wifi = wc
	}

	p.logger.Info("Netlink platform ready", "strategy", cfg.Strategy, "netns", cfg.Namespace, "interfaces", cfg.Interfaces)
	return p, nil
}

func (p *Platform) Close() error {
	if p.wifi != nil {
		p.wifi.Close()
	}
	if p.netlinkHandle != nil {
		p.netlinkHandle.Close()
	}
	if p.ns.IsOpen() {
		p.ns.Close()
	}
	return nil
}

func (p *Platform) RequestNetwork(ctx context.Context, criteria binder.Criteria, notify func(binder.Event)) (binder.Registration, error) {
	updates := make(chan netlink.LinkUpdate, 64)
	done := make(chan struct{})

	opts := netlink.LinkSubscribeOptions{
		ListExisting: true,
		ErrorCallback: func(err error) {
			p.logger.Warn("Link subscription error", "error", err)
		},
	}
	if p.ns.IsOpen() {
		ns := p.ns
		opts.Namespace = &ns
	}

	if err := netlink.LinkSubscribeWithOptions(updates, done, opts); err != nil {
		return nil, fmt.Errorf("subscribe link updates: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &watch{
		platform: p,
		criteria: criteria,
		notify:   notify,
		updates:  updates,
		logger:   logger.WithRequest(p.logger, logger.RequestAttrs{Identifier: criteria.Identifier}),
	}
	go w.run(ctx)

	var once sync.Once
	return binder.RegistrationFunc(func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}), nil
}

func (p *Platform) InstallOverride(ctx context.Context, handle *binder.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	switch p.cfg.Strategy {
	case StrategyRoute:
		if handle == nil {
			err = p.restoreDefaultRoutes()
		} else {
			err = p.replaceDefaultRoute(int(*handle))
		}
	default:
		if handle == nil {
			p.cfg.Binder.SetDevice("")
		} else {
			var link netlink.Link
			link, err = p.nl.LinkByIndex(int(*handle))
			if err == nil {
				p.cfg.Binder.SetDevice(link.Attrs().Name)
			}
		}
	}
	if err != nil {
		return err
	}

	if handle == nil {
		p.installed = nil
	} else {
		h := *handle
		p.installed = &h
	}
	return nil
}

func (p *Platform) matches(link netlink.Link, criteria binder.Criteria) bool {
	attrs := link.Attrs()
	if !p.cfg.allowed(attrs.Name) || !linkUp(link) {
		return false
	}

	switch criteria.Transport {
	case binder.TransportEthernet:
		return link.Type() == "device" && !p.isWireless(attrs)
	case binder.TransportWiFi:
		if !p.isWireless(attrs) {
			return false
		}
	}

	if criteria.Identifier == "" || p.wifi == nil {
		return true
	}

	ssid, err := p.associatedSSID(attrs.Index)
	if err != nil {
		return false
	}
	return ssid == criteria.Identifier
}

func (p *Platform) isWireless(attrs *netlink.LinkAttrs) bool {
	if p.wifi != nil {
		if ifi, err := p.wifiInterface(attrs.Index); err == nil && ifi != nil {
			return true
		}
	}
	_, err := os.Stat(filepath.Join(p.sysClassNet, attrs.Name, "wireless"))
	return err == nil
}

func (p *Platform) wifiInterface(index int) (*wifi.Interface, error) {
	ifis, err := p.wifi.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, ifi := range ifis {
		if ifi.Index == index && ifi.Type == wifi.InterfaceTypeStation {
			return ifi, nil
		}
	}
	return nil, nil
}

func (p *Platform) associatedSSID(index int) (string, error) {
	ifi, err := p.wifiInterface(index)
	if err != nil {
		return "", err
	}
	if ifi == nil {
		return "", fmt.Errorf("link %d is not a wireless station", index)
	}
	bss, err := p.wifi.BSS(ifi)
	if err != nil {
		return "", fmt.Errorf("query BSS of %s: %w", ifi.Name, err)
	}
	return bss.SSID, nil
}

func (p *Platform) linkList() ([]netlink.Link, error) {
	return p.nl.LinkList()
}

func linkUp(link netlink.Link) bool {
	attrs := link.Attrs()
	if attrs.Flags&net.FlagUp == 0 {
		return false
	}
	return attrs.OperState == netlink.OperUp || attrs.OperState == netlink.OperUnknown
}
