//go:build linux

package procnet

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// SO_BINDTODEVICE pins both directions of the socket to the device instead of
// the interface chosen by the routing table.
func bindToDevice(c syscall.RawConn, device string) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = os.NewSyscallError("setsockopt", unix.BindToDevice(int(fd), device))
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}
	if opErr != nil {
		return fmt.Errorf("bind to device %s: %w", device, opErr)
	}
	return nil
}
