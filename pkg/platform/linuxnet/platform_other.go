//go:build !linux

package linuxnet

import (
	"context"
	"errors"

	"github.com/veesix-networks/netbind/pkg/binder"
)

var errUnsupported = errors.New("netlink platform is only available on linux")

type Platform struct{}

func New(cfg Config) (*Platform, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return nil, errUnsupported
}

func (p *Platform) RequestNetwork(ctx context.Context, criteria binder.Criteria, notify func(binder.Event)) (binder.Registration, error) {
	return nil, errUnsupported
}

func (p *Platform) InstallOverride(ctx context.Context, handle *binder.Handle) error {
	return errUnsupported
}

func (p *Platform) Close() error {
	return nil
}
