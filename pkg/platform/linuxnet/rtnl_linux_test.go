//go:build linux

package linuxnet

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"github.com/veesix-networks/netbind/pkg/logger"
)

// fakeRTNL is an in-memory main table. Errors are keyed by gateway address.
type fakeRTNL struct {
	mu         sync.Mutex
	links      []netlink.Link
	routes     []netlink.Route
	delErr     map[string]error
	replaceErr map[string]error
}

func newFakeRTNL() *fakeRTNL {
	return &fakeRTNL{
		delErr:     make(map[string]error),
		replaceErr: make(map[string]error),
	}
}

func (f *fakeRTNL) LinkByIndex(index int) (netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.Attrs().Index == index {
			return l, nil
		}
	}
	return nil, fmt.Errorf("link %d not found", index)
}

func (f *fakeRTNL) LinkList() ([]netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netlink.Link(nil), f.links...), nil
}

func (f *fakeRTNL) setLinks(links ...netlink.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = links
}

func (f *fakeRTNL) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []netlink.Route
	for _, r := range f.routes {
		if r.LinkIndex == link.Attrs().Index {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRTNL) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netlink.Route(nil), f.routes...), nil
}

func (f *fakeRTNL) RouteDel(route *netlink.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.delErr[route.Gw.String()]; err != nil {
		return err
	}
	for i, r := range f.routes {
		if sameRoute(r, *route) {
			f.routes = append(f.routes[:i], f.routes[i+1:]...)
			return nil
		}
	}
	return unix.ESRCH
}

// RouteReplace keys default routes on their metric, as the kernel does.
func (f *fakeRTNL) RouteReplace(route *netlink.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.replaceErr[route.Gw.String()]; err != nil {
		return err
	}
	for i, r := range f.routes {
		if isDefault(r.Dst) == isDefault(route.Dst) && r.Priority == route.Priority {
			f.routes[i] = *route
			return nil
		}
	}
	f.routes = append(f.routes, *route)
	return nil
}

// defaultGateways returns the gateways of all default routes, sorted.
func (f *fakeRTNL) defaultGateways() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.routes {
		if isDefault(r.Dst) {
			out = append(out, r.Gw.String())
		}
	}
	sort.Strings(out)
	return out
}

func link(index int, name string, up bool) netlink.Link {
	attrs := netlink.LinkAttrs{Index: index, Name: name, OperState: netlink.OperDown}
	if up {
		attrs.Flags = net.FlagUp
		attrs.OperState = netlink.OperUp
	}
	return &netlink.Device{LinkAttrs: attrs}
}

func defaultVia(index int, gw string, metric int) netlink.Route {
	return netlink.Route{LinkIndex: index, Gw: net.ParseIP(gw), Priority: metric, Table: unix.RT_TABLE_MAIN}
}

func subnetVia(index int, cidr, gw string) netlink.Route {
	_, dst, _ := net.ParseCIDR(cidr)
	return netlink.Route{LinkIndex: index, Dst: dst, Gw: net.ParseIP(gw), Table: unix.RT_TABLE_MAIN}
}

// newTestPlatform builds a Platform over fake with wireless links named in
// wireless marked as such under a temporary sysfs root.
func newTestPlatform(t *testing.T, cfg Config, fake *fakeRTNL, wireless ...string) *Platform {
	t.Helper()

	cfg.applyDefaults()
	require.NoError(t, cfg.validate())

	root := t.TempDir()
	for _, name := range wireless {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, "wireless"), 0o755))
	}

	return &Platform{
		cfg:         cfg,
		logger:      logger.Get(logger.PlatformNetlink),
		nl:          fake,
		ns:          netns.None(),
		sysClassNet: root,
	}
}
