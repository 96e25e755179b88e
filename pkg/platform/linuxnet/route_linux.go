//go:build linux

package linuxnet

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"inet.af/netaddr"
)

// replaceDefaultRoute points the main-table IPv4 default at the gateway of
// link. The defaults it displaces are kept for restoreDefaultRoutes. On error
// every route removed by this call is put back and the saved state is left
// as it was.
func (p *Platform) replaceDefaultRoute(index int) error {
	link, err := p.nl.LinkByIndex(index)
	if err != nil {
		return fmt.Errorf("link %d: %w", index, err)
	}

	gw, err := p.gateway(link)
	if err != nil {
		return err
	}

	defaults, err := p.defaultRoutes()
	if err != nil {
		return err
	}

	var removed []netlink.Route
	for _, r := range defaults {
		// Our own route is overwritten in place by RouteReplace.
		if p.ours != nil && sameRoute(r, *p.ours) {
			continue
		}
		r := r
		if err := p.nl.RouteDel(&r); err != nil && !errors.Is(err, unix.ESRCH) {
			p.putBack(removed)
			return fmt.Errorf("remove default route via %s: %w", r.Gw, err)
		}
		removed = append(removed, r)
	}

	route := &netlink.Route{
		LinkIndex: index,
		Gw:        gw.IPAddr().IP,
		Table:     unix.RT_TABLE_MAIN,
		Priority:  p.cfg.RouteMetric,
		Scope:     netlink.SCOPE_UNIVERSE,
	}
	if err := p.nl.RouteReplace(route); err != nil {
		p.putBack(removed)
		return fmt.Errorf("install default route via %s dev %s: %w", gw, link.Attrs().Name, err)
	}

	p.saved = append(p.saved, removed...)
	p.ours = route
	p.logger.Info("Default route replaced", "interface", link.Attrs().Name, "gateway", gw, "displaced", len(p.saved))
	return nil
}

func (p *Platform) restoreDefaultRoutes() error {
	if p.ours != nil {
		if err := p.nl.RouteDel(p.ours); err != nil && !errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("remove override default route: %w", err)
		}
		p.ours = nil
	}

	var (
		restored int
		failed   []netlink.Route
		errs     []error
	)
	for _, r := range p.saved {
		r := r
		if err := p.nl.RouteReplace(&r); err != nil {
			failed = append(failed, r)
			errs = append(errs, fmt.Errorf("restore default route via %s: %w", r.Gw, err))
			continue
		}
		restored++
	}
	// Routes that could not be restored are retried on the next clear.
	p.saved = failed

	p.logger.Info("Default routes restored", "count", restored, "pending", len(failed))
	return errors.Join(errs...)
}

// putBack re-installs routes removed by a replace that did not complete.
func (p *Platform) putBack(routes []netlink.Route) {
	for _, r := range routes {
		r := r
		if err := p.nl.RouteReplace(&r); err != nil {
			p.logger.Error("Failed to put back default route", "gateway", r.Gw, "error", err)
		}
	}
}

func sameRoute(a, b netlink.Route) bool {
	return a.LinkIndex == b.LinkIndex && a.Gw.Equal(b.Gw) && a.Priority == b.Priority
}

func (p *Platform) defaultRoutes() ([]netlink.Route, error) {
	routes, err := p.nl.RouteListFiltered(netlink.FAMILY_V4, &netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	var out []netlink.Route
	for _, r := range routes {
		if isDefault(r.Dst) {
			out = append(out, r)
		}
	}
	return out, nil
}

// gateway returns the first IPv4 next hop learned on link, usually from DHCP.
func (p *Platform) gateway(link netlink.Link) (netaddr.IP, error) {
	routes, err := p.nl.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return netaddr.IP{}, fmt.Errorf("list routes of %s: %w", link.Attrs().Name, err)
	}

	for _, r := range routes {
		ip, ok := netaddr.FromStdIP(r.Gw)
		if !ok || !ip.Is4() || ip.IsUnspecified() {
			continue
		}
		return ip, nil
	}
	return netaddr.IP{}, fmt.Errorf("no IPv4 gateway on %s", link.Attrs().Name)
}

func isDefault(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0
}
