//go:build !linux

package procnet

import (
	"errors"
	"syscall"
)

func bindToDevice(c syscall.RawConn, device string) error {
	return errors.New("binding to device is not supported on this platform")
}
