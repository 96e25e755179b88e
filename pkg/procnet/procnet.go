// Package procnet carries the process-wide route override used by the
// socket strategy. Sockets created through its Dialer, ListenConfig or
// HTTPClient are pinned to the overridden device; with no override set they
// follow the host routing table.
package procnet

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/veesix-networks/netbind/pkg/logger"
)

type Binder struct {
	mu     sync.RWMutex
	device string
	logger *slog.Logger
}

var Default = New()

func New() *Binder {
	return &Binder{logger: logger.Get(logger.Procnet)}
}

func (b *Binder) SetDevice(name string) {
	b.mu.Lock()
	prev := b.device
	b.device = name
	b.mu.Unlock()

	if prev != name {
		b.logger.Info("Process route override changed", "from", prev, "to", name)
	}
}

func (b *Binder) Device() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.device
}

// Control is a net.Dialer / net.ListenConfig control hook.
func (b *Binder) Control(network, address string, c syscall.RawConn) error {
	device := b.Device()
	if device == "" {
		return nil
	}
	return bindToDevice(c, device)
}

func (b *Binder) Dialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   b.Control,
	}
}

func (b *Binder) ListenConfig() *net.ListenConfig {
	return &net.ListenConfig{Control: b.Control}
}

func (b *Binder) HTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = b.Dialer(timeout).DialContext
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func SetDevice(name string) {
	Default.SetDevice(name)
}

func Device() string {
	return Default.Device()
}

func Dialer(timeout time.Duration) *net.Dialer {
	return Default.Dialer(timeout)
}

func HTTPClient(timeout time.Duration) *http.Client {
	return Default.HTTPClient(timeout)
}
